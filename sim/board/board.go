// Package board is the composition root of the simulator. It owns the
// process-wide handler table, attaches the emulated core to the cpu package
// and registers the ISRs that serve the configured interrupt sources.
package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"clint/device"
	"clint/device/pic"
	"clint/kernel/cpu"
	"clint/kernel/irq"
	"clint/sim/api"
	"clint/sim/config"
	"clint/sim/metrics"

	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
)

// Handlers is the handler table served by Vector. Its zero value holds
// default handlers, so the emulated core may deliver interrupts before Start
// registers anything. It lives for the whole program and is only modified
// through irq.HandlerArray methods.
var Handlers irq.HandlerArray

// Vector is the interrupt entry point of the emulated core.
func Vector(line int) {
	Handlers.Call(line)
}

var (
	// newInitWriter is mocked by tests.
	newInitWriter = func(log *zap.Logger) io.WriteCloser {
		return &zapio.Writer{Log: log, Level: zap.InfoLevel}
	}

	errNotCalibrating  = errors.New("board: no calibration configured")
	errCalibrationLine = errors.New("board: calibration line is not driven by a timer")
)

// source is an interrupt source together with the state captured by its ISR.
type source struct {
	timer *pic.Timer

	// ticks is incremented from interrupt context.
	ticks atomic.Uint64

	// handler holds one of the api.Handler* values.
	handler atomic.Value
}

// Board wires the handler table to the emulated controller and its timers.
type Board struct {
	log      *zap.Logger
	handlers *irq.HandlerArray
	ctrl     *pic.Controller
	metrics  *metrics.Metrics
	sources  []*source
	cal      *config.Calibration

	prevCPU cpu.Controller
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	calDone   chan struct{}
	calPeriod time.Duration
	calErr    error
}

// New builds a board for cfg. Nothing is attached or started until Start is
// called.
func New(cfg config.Config, log *zap.Logger, handlers *irq.HandlerArray, ctrl *pic.Controller, m *metrics.Metrics) (*Board, error) {
	b := &Board{
		log:      log,
		handlers: handlers,
		ctrl:     ctrl,
		metrics:  m,
		cal:      cfg.Calibration,
		calDone:  make(chan struct{}),
	}

	for _, t := range cfg.Timers {
		timer, err := pic.NewTimer(ctrl, t.Name, t.Line, time.Duration(t.Period))
		if err != nil {
			return nil, err
		}

		src := &source{timer: timer}
		src.handler.Store(api.HandlerNone)
		b.sources = append(b.sources, src)
	}

	if b.cal != nil && b.sourceFor(b.cal.Line) == nil {
		return nil, fmt.Errorf("%w: %d", errCalibrationLine, b.cal.Line)
	}

	if b.cal == nil {
		close(b.calDone)
		b.calErr = errNotCalibrating
	}

	return b, nil
}

// Start attaches the emulated core, initializes the devices, registers the
// ISRs and starts interrupt delivery. While calibrating, the calibration
// goroutine is the foreground context; afterwards the goroutine calling Stop
// takes over.
func (b *Board) Start() error {
	b.prevCPU = cpu.Attach(b.ctrl)

	w := newInitWriter(b.log)
	drivers := []device.Driver{b.ctrl}
	for _, src := range b.sources {
		drivers = append(drivers, src.timer)
	}
	err := device.InitAll(w, drivers...)
	_ = w.Close()
	if err != nil {
		cpu.Attach(b.prevCPU)
		if b.cal != nil {
			b.calErr = err
			close(b.calDone)
		}
		return err
	}

	for _, src := range b.sources {
		b.register(src)
	}
	b.metrics.SetInstalled(b.installed())

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	b.spawn(func() error { return b.ctrl.Run(ctx) })
	for _, src := range b.sources {
		b.spawn(func() error { return src.timer.Run(ctx) })
	}

	if b.cal != nil {
		b.spawn(func() error {
			b.calibrate(ctx)
			return nil
		})
	}

	return nil
}

// Stop halts interrupt delivery, retires the registered ISRs and detaches the
// emulated core.
func (b *Board) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()

	for _, src := range b.sources {
		b.handlers.Register(src.timer.Line(), nil)
		src.handler.Store(api.HandlerNone)
	}
	b.metrics.SetInstalled(b.installed())

	cpu.Attach(b.prevCPU)
}

// Raise raises a software interrupt on line.
func (b *Board) Raise(line int) error {
	return b.ctrl.Raise(line)
}

// Status reports the state of every configured interrupt source. It may be
// called from any goroutine.
func (b *Board) Status() []api.LineStatus {
	out := make([]api.LineStatus, 0, len(b.sources))
	for _, src := range b.sources {
		line := src.timer.Line()
		masked, _ := b.ctrl.Masked(line)

		out = append(out, api.LineStatus{
			Line:    line,
			Source:  src.timer.DriverName(),
			Handler: src.handler.Load().(string),
			Ticks:   src.ticks.Load(),
			Masked:  masked,
		})
	}

	return out
}

// Calibration waits for the calibration phase to finish and returns the
// measured period of the calibrated line.
func (b *Board) Calibration(ctx context.Context) (time.Duration, error) {
	select {
	case <-b.calDone:
		return b.calPeriod, b.calErr
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// register installs the tick counting ISR for src.
func (b *Board) register(src *source) {
	line := src.timer.Line()
	b.handlers.Register(line, irq.ISRFunc(func() {
		src.ticks.Add(1)
	}))
	src.handler.Store(api.HandlerBase)

	b.log.Info("handler registered",
		zap.Int("line", line),
		zap.String("source", src.timer.DriverName()),
	)
}

// calibrate temporarily replaces the handler of the calibration line and
// measures how long it takes to observe the configured number of ticks. The
// base handler is back in place when calibrate returns.
func (b *Board) calibrate(ctx context.Context) {
	defer close(b.calDone)

	src := b.sourceFor(b.cal.Line)
	want := b.cal.Ticks

	b.log.Info("calibration started", zap.Int("line", b.cal.Line), zap.Int("ticks", want))

	var elapsed time.Duration
	b.handlers.WithOverrides(func(o *irq.Overrides) {
		var (
			seen  int
			start time.Time
			done  = make(chan time.Duration, 1)
		)

		// The first tick starts the clock; the ISR owns seen and start
		// until the scope exits.
		o.Register(b.cal.Line, irq.ISRFunc(func() {
			if seen == 0 {
				start = time.Now()
			}
			seen++
			if seen == want+1 {
				done <- time.Since(start)
			}
		}))
		src.handler.Store(api.HandlerOverride)
		b.metrics.SetInstalled(b.installed())

		select {
		case elapsed = <-done:
		case <-ctx.Done():
			b.calErr = ctx.Err()
		}
	})
	src.handler.Store(api.HandlerBase)

	if b.calErr != nil {
		b.log.Warn("calibration aborted", zap.Error(b.calErr))
		return
	}

	b.calPeriod = elapsed / time.Duration(want)
	b.log.Info("calibration finished",
		zap.Int("line", b.cal.Line),
		zap.Duration("elapsed", elapsed),
		zap.Duration("period", b.calPeriod),
	)
}

func (b *Board) sourceFor(line int) *source {
	for _, src := range b.sources {
		if src.timer.Line() == line {
			return src
		}
	}

	return nil
}

// installed counts the sources with an ISR in the handler table.
func (b *Board) installed() int {
	n := 0
	for _, src := range b.sources {
		if src.handler.Load().(string) != api.HandlerNone {
			n++
		}
	}

	return n
}

func (b *Board) spawn(fn func() error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
			b.log.Error("board goroutine failed", zap.Error(err))
		}
	}()
}
