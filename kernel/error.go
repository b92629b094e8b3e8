// Package kernel holds the definitions shared by the interrupt handling
// packages.
package kernel

// Error is the value passed to panic when a caller breaks the contract of the
// interrupt handling code: an out-of-range handler index, an install attempted
// without a held critical-section token, or an override scope used after it
// exited. These are programming errors, never conditions to recover from, so
// they are not returned.
//
// Errors are declared as package-level pointers, e.g.
//
//	var errIndexOutOfRange = &kernel.Error{Module: "irq", Message: "handler index out of range"}
//
// A violation may be detected in interrupt context, where nothing may be
// allocated. Tests compare the recovered value against the declared pointer.
type Error struct {
	// Module names the package that detected the violation.
	Module string

	// Message describes the violated contract.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "[" + e.Module + "] " + e.Message
}
