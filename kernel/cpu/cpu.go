// Package cpu exposes the interrupt-enable flag of the core the program runs
// on. The actual mechanism is selected at build time: tinygo builds talk to
// the hardware through runtime/interrupt while host builds forward to an
// attached Controller (usually an emulated core).
package cpu

// State holds the interrupt-enable state that was active before a call to
// DisableInterrupts. Its contents are backend specific and must only be passed
// back to RestoreInterrupts.
type State uintptr

var (
	// disableFn and restoreFn are mocked by tests and are automatically
	// inlined by the compiler.
	disableFn = archDisableInterrupts
	restoreFn = archRestoreInterrupts
)

// DisableInterrupts suppresses interrupt delivery and returns the state that
// was active before the call. Calls may be nested as long as each one is
// paired with a RestoreInterrupts call in LIFO order.
func DisableInterrupts() State {
	return disableFn()
}

// RestoreInterrupts restores the interrupt-enable state captured by a previous
// call to DisableInterrupts. Interrupt delivery is only re-enabled if it was
// enabled when that call was made.
func RestoreInterrupts(state State) {
	restoreFn(state)
}
