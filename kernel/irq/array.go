package irq

import (
	"clint/kernel"
	"clint/kernel/cs"
)

var (
	errIndexOutOfRange = &kernel.Error{Module: "irq", Message: "handler index out of range"}
	errScopeClosed     = &kernel.Error{Module: "irq", Message: "override scope used after it exited"}
)

// HandlerArray is a fixed-size table of Handlers indexed by interrupt number.
// Entries are only replaced inside critical sections and the override scopes
// created by WithOverrides/LockedOverrides guarantee that ISRs installed for a
// bounded part of the program are removed when that part ends.
//
// The zero value holds NrISR default handlers and is ready to use. A typical
// setup declares a package-level HandlerArray and calls into it from the
// interrupt entry points:
//
//	var handlers irq.HandlerArray
//
//	func sysTick() { handlers.Call(0) }
//
// Calling an entry outside [0, NrISR) is a contract violation and panics.
type HandlerArray struct {
	h [NrISR]Handler

	// scope is the innermost override scope that has not exited yet.
	scope *Overrides
}

// NewHandlerArray returns a HandlerArray filled with default handlers.
func NewHandlerArray() *HandlerArray {
	return &HandlerArray{}
}

// Len returns the number of entries in the array.
func (a *HandlerArray) Len() int {
	return NrISR
}

// Register installs isr for entry nr using the default critical section.
func (a *HandlerArray) Register(nr int, isr ISR) {
	a.LockedRegister(cs.Locker{}, nr, isr)
}

// LockedRegister installs isr for entry nr while inside the critical section
// provided by s. s must exclude every interrupt source that calls entry nr.
// If an override scope is active, entry nr is reset when the innermost one
// exits.
func (a *HandlerArray) LockedRegister(s cs.Section, nr int, isr ISR) {
	checkIndex(nr)

	if a.scope != nil {
		a.scope.touched[nr] = true
	}

	cs.Run(s, func(tok *cs.Token) {
		a.h[nr].Install(tok, isr)
	})
}

// Call runs the ISR installed for entry nr. This is the only method that may be
// invoked from interrupt context.
func (a *HandlerArray) Call(nr int) {
	checkIndex(nr)
	a.h[nr].Call()
}

// Installed reports whether entry nr has an ISR installed.
func (a *HandlerArray) Installed(nr int) bool {
	checkIndex(nr)
	return a.h[nr].Installed()
}

// WithOverrides runs fn with a scope through which entries of this array can be
// replaced. When fn returns, every entry registered while fn ran is reset to
// the value it had before fn was called, using the default critical section.
func (a *HandlerArray) WithOverrides(fn func(*Overrides)) {
	a.LockedOverrides(cs.Locker{}, fn)
}

// LockedOverrides is a variant of WithOverrides that uses s to restore the
// previous entries. Only entries registered while fn ran are written back, so
// s only needs to exclude the interrupt sources calling those entries. The
// entries are restored even if fn panics; the panic is propagated
// once the restore is complete.
func (a *HandlerArray) LockedOverrides(s cs.Section, fn func(*Overrides)) {
	// Only the foreground context writes to the array so the snapshot can
	// be taken outside a critical section.
	scope := &Overrides{arr: a, active: true, outer: a.scope, backup: a.h}
	a.scope = scope

	defer func() {
		scope.active = false
		a.scope = scope.outer
		cs.Run(s, func(tok *cs.Token) {
			a.restore(tok, scope)
		})
	}()

	fn(scope)
}

// restore writes back the entries scope saw being registered.
func (a *HandlerArray) restore(tok *cs.Token, scope *Overrides) {
	for nr, touched := range scope.touched {
		if touched {
			a.h[nr].Install(tok, scope.backup[nr].isr)
		}
	}
}

// checkIndex panics if nr does not address an entry of a HandlerArray.
func checkIndex(nr int) {
	if uint(nr) >= NrISR {
		panic(errIndexOutOfRange)
	}
}

// Overrides gives the body of an override scope access to its HandlerArray.
// ISRs registered through it only stay installed until the scope exits, which
// makes it safe to register ISRs that capture state owned by the scope's body.
// An Overrides value must not be used once its scope has exited; doing so
// panics.
type Overrides struct {
	arr    *HandlerArray
	active bool
	outer  *Overrides

	// backup is the table as it was when the scope was entered; touched
	// marks the entries registered since then.
	backup  [NrISR]Handler
	touched [NrISR]bool
}

// array returns the scope's HandlerArray or panics if the scope has exited.
func (o *Overrides) array() *HandlerArray {
	if !o.active {
		panic(errScopeClosed)
	}

	return o.arr
}

// Len returns the number of entries in the underlying array.
func (o *Overrides) Len() int {
	return o.array().Len()
}

// Register installs isr for entry nr until the scope exits.
func (o *Overrides) Register(nr int, isr ISR) {
	o.array().Register(nr, isr)
}

// LockedRegister installs isr for entry nr until the scope exits, using s for
// the update.
func (o *Overrides) LockedRegister(s cs.Section, nr int, isr ISR) {
	o.array().LockedRegister(s, nr, isr)
}

// Call runs the ISR installed for entry nr.
func (o *Overrides) Call(nr int) {
	o.array().Call(nr)
}

// Installed reports whether entry nr has an ISR installed.
func (o *Overrides) Installed(nr int) bool {
	return o.array().Installed(nr)
}

// WithOverrides opens a nested scope. Entries are restored to their state at
// the start of the nested scope when fn returns.
func (o *Overrides) WithOverrides(fn func(*Overrides)) {
	o.array().WithOverrides(fn)
}

// LockedOverrides opens a nested scope that uses s to restore its entries.
func (o *Overrides) LockedOverrides(s cs.Section, fn func(*Overrides)) {
	o.array().LockedOverrides(s, fn)
}
