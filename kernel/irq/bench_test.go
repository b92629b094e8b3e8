package irq

import (
	"testing"

	"clint/kernel/cs"
)

var benchSink int

//go:noinline
func benchInc() {
	benchSink++
}

func BenchmarkBareFunc(b *testing.B) {
	for i := 0; i < b.N; i++ {
		benchInc()
	}
}

func BenchmarkHandlerCall(b *testing.B) {
	var h Handler
	cs.Run(cs.PassThrough{}, func(tok *cs.Token) {
		h.Install(tok, ISRFunc(func() { benchSink++ }))
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Call()
	}
}

func BenchmarkHandlerArrayCall(b *testing.B) {
	var arr HandlerArray
	arr.LockedRegister(cs.PassThrough{}, 0, ISRFunc(func() { benchSink++ }))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		arr.Call(0)
	}
}

func BenchmarkHandlerCallAllocs(b *testing.B) {
	var h Handler
	cs.Run(cs.PassThrough{}, func(tok *cs.Token) {
		h.Install(tok, ISRFunc(benchInc))
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Call()
	}
}
