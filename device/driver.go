// Package device defines the contract shared by the (emulated) devices that
// raise interrupts.
package device

import (
	"fmt"
	"io"
)

// Driver is an interface implemented by all device drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device. Any diagnostic output is written
	// to the supplied io.Writer.
	DriverInit(io.Writer) error
}

// InitAll initializes drivers in order and stops at the first failure. Each
// driver writes its output through w, prefixed with the driver name and
// version.
func InitAll(w io.Writer, drivers ...Driver) error {
	for _, drv := range drivers {
		major, minor, patch := drv.DriverVersion()
		pw := &prefixWriter{sink: w, prefix: fmt.Sprintf("[%s(%d.%d.%d)] ", drv.DriverName(), major, minor, patch)}

		if err := drv.DriverInit(pw); err != nil {
			return fmt.Errorf("%s: init failed: %w", drv.DriverName(), err)
		}
	}

	return nil
}
