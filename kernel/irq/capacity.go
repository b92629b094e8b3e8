//go:build !isr8 && !isr16 && !isr64 && !isr128 && !isr256

package irq

// NrISR is the number of entries in a HandlerArray. It is selected at build
// time with one of the isr8, isr16, isr32, isr64, isr128 or isr256 tags and
// defaults to 32. Every entry costs two words of memory, so a 256-entry array
// costs 2KiB on a 32-bit target.
const NrISR = 32
