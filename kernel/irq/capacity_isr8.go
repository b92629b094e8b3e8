//go:build isr8

package irq

// NrISR is the number of entries in a HandlerArray.
const NrISR = 8
