package player

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // register MIDI driver

	"github.com/None-later/MidiSlicer/pkg/midi"
)

// Device is a Sink backed by a system MIDI output port.
type Device struct {
	port drivers.Out
	send func(msg gomidi.Message) error
}

// Devices returns the names of the available MIDI output ports, indexed as
// OpenDevice expects them.
func Devices() []string {
	ports := gomidi.GetOutPorts()
	names := make([]string, len(ports))
	for i, port := range ports {
		names[i] = port.String()
	}
	return names
}

// OpenDevice opens the MIDI output port with the given index.
func OpenDevice(index int) (*Device, error) {
	ports := gomidi.GetOutPorts()
	if index < 0 || index >= len(ports) {
		return nil, fmt.Errorf("no MIDI output port %d (%d available)", index, len(ports))
	}

	port := ports[index]
	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open output %q: %w", port.String(), err)
	}
	return &Device{port: port, send: send}, nil
}

func (d *Device) String() string { return d.port.String() }

// Send puts one resolved message on the wire. Meta events have no wire form
// and are dropped silently.
func (d *Device) Send(m midi.Message) error {
	raw, err := m.Wire()
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	return d.send(gomidi.Message(raw))
}

// Close releases the underlying port.
func (d *Device) Close() error {
	return d.port.Close()
}
