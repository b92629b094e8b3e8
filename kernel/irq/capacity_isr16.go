//go:build isr16

package irq

// NrISR is the number of entries in a HandlerArray.
const NrISR = 16
