//go:build isr64

package irq

// NrISR is the number of entries in a HandlerArray.
const NrISR = 64
