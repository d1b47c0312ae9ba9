// Package hardware implements the input sampler (spec §4.E): it
// debounces GPIO pin state into an edge-triggered event queue that the
// network module drains once per tick.
package hardware

import (
	"github.com/MusicLab-Dev/Board/gpio"
	"github.com/MusicLab-Dev/Board/internal/boardlog"
)

var log = boardlog.For("hardware")

// ControlType identifies the kind of physical control a Control record
// tracks. Only Button exists today; the type exists so a future pad
// type doesn't require reshaping Control.
type ControlType uint8

const (
	Button ControlType = iota
)

// Control is the sampler's per-pin state: its kind and its last
// observed sample.
type Control struct {
	Type   ControlType
	Value1 uint8
}

// InputEvent is an edge: pin index i changed to Value.
type InputEvent struct {
	Index uint8
	Value uint8
}

// Module is the hardware module (component E): it owns one Control per
// configured pin and a per-tick events queue.
type Module struct {
	port     gpio.Port
	controls []Control
	events   []InputEvent
}

// NewModule constructs the sampler and configures every pin in Pins as
// a pulled-up digital input, matching HardwareModule's constructor.
func NewModule(port gpio.Port) *Module {
	m := &Module{
		port:     port,
		controls: make([]Control, len(Pins)),
		events:   make([]InputEvent, 0, len(Pins)),
	}

	for i, pin := range Pins {
		port.SetPinMode(pin, gpio.Input)
		port.SetPullMode(pin, gpio.PullUp)
		m.controls[i] = Control{Type: Button}
	}

	log.Debug().Int("pinCount", len(Pins)).Msg("hardware module constructed")

	return m
}

// Tick samples every configured pin and appends an InputEvent for each
// pin whose debounced value changed since the last tick. It does
// nothing unless connected is true (spec §4.E).
func (m *Module) Tick(connected bool) {
	if !connected {
		return
	}

	m.events = m.events[:0]

	for i, pin := range Pins {
		raw := m.port.DigitalRead(pin)
		// Pin logic is pull-up: pressed reads low (0), reported as 1.
		value := uint8(0)
		if raw == 0 {
			value = 1
		}

		ctrl := &m.controls[i]
		if value == ctrl.Value1 {
			continue
		}
		ctrl.Value1 = value
		m.events = append(m.events, InputEvent{
			Index: uint8(i),
			Value: value,
		})
	}
}

// Discover is the hardware module's discovery-cadence hook. Hardware
// inputs have nothing to (re)discover today; the hook exists so the
// scheduler can treat every module uniformly.
func (m *Module) Discover(connected bool) {}

// Events returns this tick's edge events. The slice is reused across
// ticks; callers must finish consuming it (typically by copying into
// the network buffer) before the next Tick call.
func (m *Module) Events() []InputEvent {
	return m.events
}
