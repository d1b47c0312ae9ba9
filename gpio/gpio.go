// Package gpio states the external collaborator contract for digital
// input/output pins (spec §4.B). The real backend lives off-repo on
// whatever board-support package the hardware vendor ships; this
// package only fixes the interface the rest of the agent programs
// against, plus a no-op stub used on hosts without GPIO hardware and
// in tests.
package gpio

// PinMode selects a pin's function.
type PinMode uint8

const (
	Input PinMode = iota
	Output
	PwmOutput
	GpioClock
)

// PullMode selects a pin's internal pull resistor.
type PullMode uint8

const (
	PullUp PullMode = iota
	PullDown
)

// Port is the procedural interface every board input sampler programs
// against. Implementations must be safe to call from a single
// goroutine only — the scheduler never calls into a Port concurrently.
type Port interface {
	SetPinMode(pin int, mode PinMode)
	SetPullMode(pin int, mode PullMode)

	DigitalRead(pin int) int
	DigitalWrite(pin int, value int)

	AnalogRead(pin int) int
	AnalogWrite(pin int, value int)

	PwmWrite(pin int, value int)
}

// Stub is a Port that never touches real hardware: reads return 0,
// writes are no-ops. Used on development hosts and in tests.
type Stub struct{}

var _ Port = Stub{}

func (Stub) SetPinMode(pin int, mode PinMode)   {}
func (Stub) SetPullMode(pin int, mode PullMode) {}
func (Stub) DigitalRead(pin int) int            { return 0 }
func (Stub) DigitalWrite(pin int, value int)    {}
func (Stub) AnalogRead(pin int) int             { return 0 }
func (Stub) AnalogWrite(pin int, value int)     {}
func (Stub) PwmWrite(pin int, value int)        {}
