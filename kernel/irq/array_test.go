package irq

import (
	"testing"

	"clint/kernel/cs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSection wraps PassThrough and records how many blocks it ran.
type countingSection struct {
	entered int
}

func (s *countingSection) WithLock(fn func()) {
	s.entered++
	fn()
}

func counter(n *int) ISR {
	return ISRFunc(func() { *n++ })
}

func TestHandlerArrayLen(t *testing.T) {
	var arr HandlerArray
	assert.Equal(t, NrISR, arr.Len())
	assert.Equal(t, NrISR, NewHandlerArray().Len())
}

func TestHandlerArrayUnregisteredCallsAreNoops(t *testing.T) {
	arr := NewHandlerArray()
	for nr := 0; nr < arr.Len(); nr++ {
		assert.False(t, arr.Installed(nr))
		arr.Call(nr)
	}
}

func TestHandlerArrayRegister(t *testing.T) {
	var (
		arr   HandlerArray
		count int
	)

	arr.Register(0, counter(&count))
	arr.Call(0)
	arr.Call(0)
	assert.Equal(t, 2, count)

	arr.Call(1)
	assert.Equal(t, 2, count, "calling another entry must not run the ISR")

	assert.True(t, arr.Installed(0))
	assert.False(t, arr.Installed(1))
}

func TestHandlerArrayCallCountMatchesEffects(t *testing.T) {
	var (
		arr   HandlerArray
		count int
	)

	last := arr.Len() - 1
	arr.Register(last, counter(&count))
	for k := 1; k <= 10; k++ {
		arr.Call(last)
		require.Equal(t, k, count)
	}
}

func TestHandlerArrayLockedRegisterUsesSection(t *testing.T) {
	var (
		arr   HandlerArray
		s     countingSection
		count int
	)

	arr.LockedRegister(&s, 3, counter(&count))
	arr.Call(3)

	assert.Equal(t, 1, s.entered)
	assert.Equal(t, 1, count)
}

func TestHandlerArrayIndexOutOfRange(t *testing.T) {
	var arr HandlerArray

	for _, nr := range []int{-1, NrISR, NrISR + 1} {
		assert.PanicsWithValue(t, errIndexOutOfRange, func() { arr.Register(nr, ISRFunc(DefaultHandler)) }, "Register(%d)", nr)
		assert.PanicsWithValue(t, errIndexOutOfRange, func() { arr.LockedRegister(cs.PassThrough{}, nr, nil) }, "LockedRegister(%d)", nr)
		assert.PanicsWithValue(t, errIndexOutOfRange, func() { arr.Call(nr) }, "Call(%d)", nr)
		assert.PanicsWithValue(t, errIndexOutOfRange, func() { arr.Installed(nr) }, "Installed(%d)", nr)
	}
}

func TestHandlerArrayOutOfRangeRegisterSkipsSection(t *testing.T) {
	var (
		arr HandlerArray
		s   countingSection
	)

	assert.Panics(t, func() { arr.LockedRegister(&s, NrISR, nil) })
	assert.Zero(t, s.entered)
}

func TestWithOverridesRestoresPreviousHandlers(t *testing.T) {
	var (
		arr             HandlerArray
		base, overrides int
	)

	arr.Register(0, counter(&base))

	arr.WithOverrides(func(o *Overrides) {
		o.Register(0, counter(&overrides))
		o.Register(1, counter(&overrides))
		arr.Call(0)
		assert.Equal(t, 1, overrides)
		assert.True(t, o.Installed(1))
	})

	assert.Equal(t, 1, overrides)
	assert.Zero(t, base)

	arr.Call(0)
	arr.Call(1)
	assert.Equal(t, 1, base, "expected the original ISR to be restored")
	assert.Equal(t, 1, overrides, "expected the scoped ISRs to be removed")
	assert.True(t, arr.Installed(0))
	assert.False(t, arr.Installed(1))
}

func TestWithOverridesFromEmptyTable(t *testing.T) {
	var (
		arr   HandlerArray
		calls int
	)

	arr.WithOverrides(func(o *Overrides) {
		for nr := 0; nr < o.Len(); nr++ {
			o.Register(nr, counter(&calls))
		}
	})

	for nr := 0; nr < arr.Len(); nr++ {
		assert.False(t, arr.Installed(nr))
		arr.Call(nr)
	}
	assert.Zero(t, calls)
}

func TestNestedOverridesUnwindInReverseOrder(t *testing.T) {
	var (
		arr                  HandlerArray
		base, outer, inner   int
		seenInsideOuterAfter int
	)

	arr.Register(0, counter(&base))

	arr.WithOverrides(func(o *Overrides) {
		o.Register(0, counter(&outer))

		o.WithOverrides(func(n *Overrides) {
			n.Register(0, counter(&inner))
			n.Call(0)
		})

		// The inner scope is gone; the outer override is active again.
		o.Call(0)
		seenInsideOuterAfter = outer
	})

	arr.Call(0)

	assert.Equal(t, 1, inner)
	assert.Equal(t, 1, seenInsideOuterAfter)
	assert.Equal(t, 1, outer)
	assert.Equal(t, 1, base)
}

func TestOverridesRestoreOnPanic(t *testing.T) {
	var (
		arr             HandlerArray
		s               countingSection
		base, overrides int
	)

	arr.Register(5, counter(&base))

	assert.PanicsWithValue(t, "body failed", func() {
		arr.LockedOverrides(&s, func(o *Overrides) {
			o.Register(5, counter(&overrides))
			panic("body failed")
		})
	})

	assert.Equal(t, 1, s.entered, "expected the restore to run inside the supplied section")

	arr.Call(5)
	assert.Equal(t, 1, base)
	assert.Zero(t, overrides)
}

func TestLockedOverridesUsesSectionForRestore(t *testing.T) {
	var (
		arr HandlerArray
		s   countingSection
	)

	arr.LockedOverrides(&s, func(o *Overrides) {
		assert.Zero(t, s.entered, "the body runs outside the section")
		o.LockedRegister(&s, 2, ISRFunc(DefaultHandler))
		assert.Equal(t, 1, s.entered)
	})

	assert.Equal(t, 2, s.entered)
	assert.False(t, arr.Installed(2))
}

func TestOverridesUnusableAfterExit(t *testing.T) {
	var (
		arr    HandlerArray
		leaked *Overrides
		count  int
	)

	arr.WithOverrides(func(o *Overrides) {
		leaked = o
	})

	require.NotNil(t, leaked)

	specs := map[string]func(){
		"Register":        func() { leaked.Register(0, counter(&count)) },
		"LockedRegister":  func() { leaked.LockedRegister(cs.PassThrough{}, 0, counter(&count)) },
		"Call":            func() { leaked.Call(0) },
		"Installed":       func() { leaked.Installed(0) },
		"Len":             func() { leaked.Len() },
		"WithOverrides":   func() { leaked.WithOverrides(func(*Overrides) {}) },
		"LockedOverrides": func() { leaked.LockedOverrides(cs.PassThrough{}, func(*Overrides) {}) },
	}

	for name, fn := range specs {
		assert.PanicsWithValue(t, errScopeClosed, fn, name)
	}

	assert.False(t, arr.Installed(0))
}

func TestOverridesInnerScopeClosedInsideOuter(t *testing.T) {
	var arr HandlerArray

	arr.WithOverrides(func(o *Overrides) {
		var inner *Overrides
		o.WithOverrides(func(n *Overrides) { inner = n })

		assert.PanicsWithValue(t, errScopeClosed, func() { inner.Call(0) })
		assert.NotPanics(t, func() { o.Call(0) })
	})
}

func TestOverridesRestoreOnlyRegisteredEntries(t *testing.T) {
	var (
		arr  HandlerArray
		base int
	)

	arr.Register(1, counter(&base))

	arr.WithOverrides(func(o *Overrides) {
		o.Register(0, ISRFunc(DefaultHandler))
		o.LockedRegister(cs.PassThrough{}, 2, ISRFunc(DefaultHandler))

		o.WithOverrides(func(n *Overrides) {
			n.Register(3, ISRFunc(DefaultHandler))

			for nr, exp := range map[int]bool{0: false, 1: false, 2: false, 3: true} {
				assert.Equal(t, exp, n.touched[nr], "inner scope, entry %d", nr)
			}
		})

		for nr, exp := range map[int]bool{0: true, 1: false, 2: true, 3: false} {
			assert.Equal(t, exp, o.touched[nr], "outer scope, entry %d", nr)
		}
	})

	assert.Nil(t, arr.scope, "expected no active scope once the outermost one exited")

	arr.Call(1)
	assert.Equal(t, 1, base)
	for _, nr := range []int{0, 2, 3} {
		assert.False(t, arr.Installed(nr), "entry %d", nr)
	}
}

func TestOverridesRestoreDirectRegistrations(t *testing.T) {
	var (
		arr             HandlerArray
		base, overrides int
	)

	arr.Register(4, counter(&base))

	arr.WithOverrides(func(*Overrides) {
		arr.Register(4, counter(&overrides))
		arr.Register(6, counter(&overrides))
	})

	arr.Call(4)
	arr.Call(6)
	assert.Equal(t, 1, base)
	assert.Zero(t, overrides)
	assert.False(t, arr.Installed(6))
}

func TestOverridesRestoreEntryTouchedByOuterAndInner(t *testing.T) {
	var (
		arr                HandlerArray
		base, outer, inner int
	)

	arr.Register(0, counter(&base))

	arr.WithOverrides(func(o *Overrides) {
		o.Register(0, counter(&outer))

		o.WithOverrides(func(n *Overrides) {
			n.Register(0, counter(&inner))
		})

		o.Call(0)
	})

	arr.Call(0)
	assert.Equal(t, []int{1, 1, 0}, []int{base, outer, inner})
}
