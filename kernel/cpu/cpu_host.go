//go:build !tinygo

package cpu

// Controller is implemented by emulated cores that own an interrupt-enable
// flag. Host builds have no access to the real flag so DisableInterrupts and
// RestoreInterrupts are forwarded to the attached Controller instead.
type Controller interface {
	Disable() State
	Restore(State)
}

// controller is only accessed by the foreground context.
var controller Controller

// Attach installs c as the target of DisableInterrupts/RestoreInterrupts and
// returns the previously attached controller. Passing nil detaches the current
// controller, turning both calls into no-ops. Attach must be called before the
// attached core starts delivering interrupts.
func Attach(c Controller) Controller {
	prev := controller
	controller = c
	return prev
}

func archDisableInterrupts() State {
	if c := controller; c != nil {
		return c.Disable()
	}

	return 0
}

func archRestoreInterrupts(state State) {
	if c := controller; c != nil {
		c.Restore(state)
	}
}
