package driver

import "log/slog"

// Event is delivered to the registered Listener. It is one of StateChanged,
// DeviceFound, DeviceNotFound or LogLine.
type Event interface {
	// Kind returns a short stable name for the event type.
	Kind() string
}

// StateChanged reports a connection state transition. The new state is
// already observable through Driver.State when the event is delivered.
type StateChanged struct {
	State State
}

// DeviceFound reports that a scan matched a peer by name.
type DeviceFound struct {
	Address string
}

// DeviceNotFound reports that a scan timed out without a match.
type DeviceNotFound struct{}

// LogLine is a diagnostic line emitted by the driver.
type LogLine struct {
	Level   slog.Level
	Tag     string
	Message string
}

func (StateChanged) Kind() string   { return "state_changed" }
func (DeviceFound) Kind() string    { return "device_found" }
func (DeviceNotFound) Kind() string { return "device_not_found" }
func (LogLine) Kind() string        { return "log" }

// Listener receives driver events.
type Listener func(Event)
