// Package pic emulates a single-core CPU together with a programmable
// interrupt controller. It lets host builds exercise interrupt handlers with
// real preemption: interrupts are delivered from their own goroutine but never
// while the foreground holds a critical section, which is how a single core
// behaves.
//
// Two contexts use a Controller. The foreground context is a single goroutine
// that runs the program and is the only one allowed to call Disable, Restore,
// Mask, Unmask and LineSection. The interrupt context is the goroutine running
// Run; vectors executed by it may only call Raise. Raise and the query
// methods can be called from any goroutine.
package pic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"clint/kernel/cpu"
)

var (
	// ErrNoSuchLine is returned when an interrupt line outside the range
	// handled by the controller is requested.
	ErrNoSuchLine = errors.New("pic: no such interrupt line")

	errNoVector = errors.New("pic: nil interrupt vector")
	errNoLines  = errors.New("pic: controller needs at least one line")
)

// Observer receives notifications about the activity of a Controller.
// Implementations must be safe for concurrent use.
type Observer interface {
	// Raised is called when a line becomes pending.
	Raised(line int)

	// Coalesced is called when a line is raised while already pending.
	Coalesced(line int)

	// Delivered is called after the vector for line returned.
	Delivered(line int, took time.Duration)

	// InterruptsDisabled is called when the foreground re-enables
	// interrupt delivery, with the time delivery was suppressed for.
	InterruptsDisabled(held time.Duration)
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver attaches an observer to the controller.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.obs = o
		}
	}
}

// Controller is an emulated interrupt controller attached to a single core.
// It implements cpu.Controller so it can back cs.Locker on host builds.
type Controller struct {
	lines  int
	vector func(line int)
	obs    Observer

	// core is held by the interrupt context while a vector runs and by the
	// foreground while interrupt delivery is disabled.
	core sync.Mutex

	// depth and disabledAt are only accessed by the foreground.
	depth      int
	disabledAt time.Time

	// mu guards pending and masked.
	mu      sync.Mutex
	pending []bool
	masked  []bool

	wake chan struct{}
}

// New returns a controller with the requested number of lines that delivers
// interrupts by calling vector with the line number. All lines start
// unmasked.
func New(lines int, vector func(line int), opts ...Option) (*Controller, error) {
	if lines <= 0 {
		return nil, errNoLines
	}
	if vector == nil {
		return nil, errNoVector
	}

	c := &Controller{
		lines:   lines,
		vector:  vector,
		obs:     nopObserver{},
		pending: make([]bool, lines),
		masked:  make([]bool, lines),
		wake:    make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// DriverName implements device.Driver.
func (c *Controller) DriverName() string {
	return "pic"
}

// DriverVersion implements device.Driver.
func (c *Controller) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit implements device.Driver.
func (c *Controller) DriverInit(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%d interrupt lines, all unmasked\n", c.lines)
	return err
}

// Lines returns the number of interrupt lines.
func (c *Controller) Lines() int {
	return c.lines
}

// Disable suppresses interrupt delivery. It waits for an in-flight vector to
// return before taking over the core. Nested calls are allowed.
func (c *Controller) Disable() cpu.State {
	if c.depth == 0 {
		c.core.Lock()
		c.disabledAt = time.Now()
	}

	c.depth++
	return cpu.State(c.depth - 1)
}

// Restore returns to the nesting level captured by the matching Disable call
// and re-enables delivery when the outermost level is left.
func (c *Controller) Restore(state cpu.State) {
	c.depth = int(state)
	if c.depth != 0 {
		return
	}

	held := time.Since(c.disabledAt)
	c.core.Unlock()
	c.obs.InterruptsDisabled(held)
	c.kick()
}

// Raise marks line as pending. Raising a line that is already pending has no
// further effect.
func (c *Controller) Raise(line int) error {
	if err := c.checkLine(line); err != nil {
		return err
	}

	c.mu.Lock()
	coalesced := c.pending[line]
	c.pending[line] = true
	c.mu.Unlock()

	if coalesced {
		c.obs.Coalesced(line)
		return nil
	}

	c.obs.Raised(line)
	c.kick()
	return nil
}

// Pending reports whether line is waiting to be delivered.
func (c *Controller) Pending(line int) (bool, error) {
	if err := c.checkLine(line); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[line], nil
}

// Masked reports whether delivery of line is currently masked.
func (c *Controller) Masked(line int) (bool, error) {
	if err := c.checkLine(line); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.masked[line], nil
}

// Mask prevents line from being delivered. When Mask returns, no vector for
// line is running and none will start until the line is unmasked. Raised
// interrupts stay pending while masked.
func (c *Controller) Mask(line int) error {
	_, err := c.setMask(line, true)
	return err
}

// Unmask allows line to be delivered again.
func (c *Controller) Unmask(line int) error {
	_, err := c.setMask(line, false)
	return err
}

// setMask updates the mask bit for line and returns its previous value.
func (c *Controller) setMask(line int, masked bool) (bool, error) {
	if err := c.checkLine(line); err != nil {
		return false, err
	}

	// Taking the core waits for an in-flight vector to finish. It is
	// already ours if the foreground disabled interrupt delivery.
	if c.depth == 0 {
		c.core.Lock()
		defer c.core.Unlock()
	}

	c.mu.Lock()
	prev := c.masked[line]
	c.masked[line] = masked
	c.mu.Unlock()

	if !masked {
		c.kick()
	}

	return prev, nil
}

// LineSection returns a critical section that only masks line. It is enough to
// protect updates of the handler serving line, including the restore of an
// override scope that only registered that entry, while every other interrupt
// source stays live.
func (c *Controller) LineSection(line int) (*LineSection, error) {
	if err := c.checkLine(line); err != nil {
		return nil, err
	}

	return &LineSection{c: c, line: line}, nil
}

// LineSection is a cs.Section that masks a single interrupt line.
type LineSection struct {
	c    *Controller
	line int
}

// WithLock implements cs.Section. The previous mask bit is restored even if
// fn panics.
func (s *LineSection) WithLock(fn func()) {
	prev, _ := s.c.setMask(s.line, true)
	defer s.c.setMask(s.line, prev)

	fn()
}

// Run delivers pending interrupts until ctx is done. Lines are served lowest
// number first; each vector runs to completion before the next one starts.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if c.deliverNext() {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		}
	}
}

// deliverNext runs the vector for the lowest pending, unmasked line. It
// returns false if no line was ready.
func (c *Controller) deliverNext() bool {
	c.core.Lock()

	line := c.next()
	if line < 0 {
		c.core.Unlock()
		return false
	}

	start := time.Now()
	func() {
		defer c.core.Unlock()
		c.vector(line)
	}()

	c.obs.Delivered(line, time.Since(start))
	return true
}

// next acknowledges and returns the lowest pending, unmasked line or -1.
func (c *Controller) next() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	for line := range c.pending {
		if c.pending[line] && !c.masked[line] {
			c.pending[line] = false
			return line
		}
	}

	return -1
}

// kick wakes up Run without blocking.
func (c *Controller) kick() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) checkLine(line int) error {
	if line < 0 || line >= c.lines {
		return fmt.Errorf("%w: %d", ErrNoSuchLine, line)
	}

	return nil
}

type nopObserver struct{}

func (nopObserver) Raised(int)                       {}
func (nopObserver) Coalesced(int)                    {}
func (nopObserver) Delivered(int, time.Duration)     {}
func (nopObserver) InterruptsDisabled(time.Duration) {}
