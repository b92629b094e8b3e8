//go:build !isr8 && !isr16 && !isr64 && !isr128 && !isr256

package irq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapacity(t *testing.T) {
	var arr HandlerArray

	assert.Equal(t, 32, NrISR)
	assert.Equal(t, 32, arr.Len())
	assert.Panics(t, func() { arr.Call(32) })
	assert.NotPanics(t, func() { arr.Call(31) })
}
