package pic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var errBadPeriod = errors.New("pic: timer period must be positive")

// Timer is an emulated periodic interrupt source, such as a system tick.
type Timer struct {
	name   string
	line   int
	period time.Duration
	c      *Controller
}

// NewTimer returns a timer that raises line on c every period once Run is
// called.
func NewTimer(c *Controller, name string, line int, period time.Duration) (*Timer, error) {
	if err := c.checkLine(line); err != nil {
		return nil, err
	}
	if period <= 0 {
		return nil, errBadPeriod
	}

	return &Timer{name: name, line: line, period: period, c: c}, nil
}

// DriverName implements device.Driver.
func (t *Timer) DriverName() string {
	return t.name
}

// DriverVersion implements device.Driver.
func (t *Timer) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit implements device.Driver.
func (t *Timer) DriverInit(w io.Writer) error {
	_, err := fmt.Fprintf(w, "raises line %d every %s\n", t.line, t.period)
	return err
}

// Line returns the interrupt line raised by the timer.
func (t *Timer) Line() int {
	return t.line
}

// Run raises the timer's line every period until ctx is done.
func (t *Timer) Run(ctx context.Context) error {
	tk := time.NewTicker(t.period)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tk.C:
			if err := t.c.Raise(t.line); err != nil {
				return err
			}
		}
	}
}
