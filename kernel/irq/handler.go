// Package irq stores the closures that service interrupts. A Handler holds a
// single ISR; a HandlerArray is a fixed table of Handlers indexed by
// interrupt number and is what interrupt entry points call into.
package irq

import (
	"clint/kernel"
	"clint/kernel/cs"
)

var (
	errUnmaskedInstall = &kernel.Error{Module: "irq", Message: "handler installed outside of a critical section"}
)

// ISR is implemented by values that service an interrupt. ServiceInterrupt
// takes no arguments; everything it needs must be captured by the value
// itself.
type ISR interface {
	ServiceInterrupt()
}

// ISRFunc adapts an ordinary closure so it can be installed as an ISR.
type ISRFunc func()

// ServiceInterrupt calls f().
func (f ISRFunc) ServiceInterrupt() {
	f()
}

// DefaultHandler does nothing. Handlers behave as if it was installed until
// Install is called for the first time. To retire an ISR, e.g. before the
// state it captures stops being valid, install nil: the handler then reports
// no ISR installed. Installing ISRFunc(DefaultHandler) also stops the previous
// ISR from running, but Installed keeps reporting true.
func DefaultHandler() {}

// Handler holds at most one ISR and calls it on behalf of an interrupt entry
// point. The zero value is ready to use and behaves like DefaultHandler, so
// Handlers can be declared as package-level variables that are valid before
// any interrupt fires.
//
// A Handler does not own its ISR. Whoever installs an ISR must stop touching
// the state it captures until the ISR has been replaced.
type Handler struct {
	isr ISR
}

// Install replaces the ISR of this handler. A nil isr installs DefaultHandler.
//
// Install has no exclusion against a concurrent Call. tok must come from a
// critical section that also masks every interrupt source that may call this
// handler; Install panics if tok is not held.
func (h *Handler) Install(tok *cs.Token, isr ISR) {
	if !tok.Held() {
		panic(errUnmaskedInstall)
	}

	h.isr = isr
}

// Call runs the installed ISR. Call is not synchronized with Install: it must
// only run from interrupt context, which cannot be entered while the critical
// section guarding an Install is active.
func (h *Handler) Call() {
	if isr := h.isr; isr != nil {
		isr.ServiceInterrupt()
	}
}

// Installed reports whether an ISR is installed. It returns false for a new
// handler and after Install was called with a nil ISR. Any non-nil ISR counts
// as installed, ISRFunc(DefaultHandler) included.
func (h *Handler) Installed() bool {
	return h.isr != nil
}
