// Package cs provides critical sections: dynamic extents during which
// interrupt delivery is suppressed.
//
// Critical sections are only entered when the handlers installed in an
// irq.HandlerArray are updated. They are never entered when an interrupt calls
// into a handler: the expected Section implementation turns interrupt
// delivery off entirely, so no handler can be invoked while an update is in
// progress and the call path does not need to pay for any locking. For the
// same reason an update can never deadlock against a call.
//
// Custom Section implementations must uphold this contract. A Section that
// does not exclude every interrupt source that may call the entry being
// updated brings back the race it is supposed to prevent.
package cs

import "clint/kernel/cpu"

// Section is implemented by types that can run a block of work with
// interrupt delivery suppressed.
type Section interface {
	// WithLock runs fn exactly once inside the critical section.
	WithLock(fn func())
}

// Token proves that its holder is running inside a critical section. Tokens
// are handed out by WithLock and Run and stop being held as soon as the block
// they were passed to returns.
type Token struct {
	held bool
}

// Held reports whether the token may still be used to perform masked writes.
func (t *Token) Held() bool {
	return t != nil && t.held
}

// WithLock runs fn inside the critical section provided by s and returns its
// result unchanged.
func WithLock[R any](s Section, fn func(*Token) R) R {
	var (
		tok Token
		res R
	)

	s.WithLock(func() {
		tok.held = true
		defer func() { tok.held = false }()

		res = fn(&tok)
	})

	return res
}

// Run is a variant of WithLock for blocks that do not produce a result.
func Run(s Section, fn func(*Token)) {
	WithLock(s, func(tok *Token) struct{} {
		fn(tok)
		return struct{}{}
	})
}

// Locker is the default Section. It disables interrupt delivery on the
// current core for the duration of the block and restores the previous state
// afterwards, even if the block panics.
type Locker struct{}

// WithLock implements Section.
func (Locker) WithLock(fn func()) {
	state := cpu.DisableInterrupts()
	defer cpu.RestoreInterrupts(state)

	fn()
}

// PassThrough is a Section that runs blocks inline without suppressing
// anything. It is meant for host-side tests where nothing can preempt the
// caller.
type PassThrough struct{}

// WithLock implements Section.
func (PassThrough) WithLock(fn func()) {
	fn()
}
