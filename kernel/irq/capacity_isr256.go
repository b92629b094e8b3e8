//go:build isr256

package irq

// NrISR is the number of entries in a HandlerArray.
const NrISR = 256
