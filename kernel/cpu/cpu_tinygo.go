//go:build tinygo

package cpu

import "runtime/interrupt"

func archDisableInterrupts() State {
	return State(interrupt.Disable())
}

func archRestoreInterrupts(state State) {
	interrupt.Restore(interrupt.State(state))
}
