package driver

import "github.com/chaz8081/hapticlink/internal/ble/protocol"

// State is the single authoritative connection state.
type State int32

const (
	StateNone State = iota
	StateSearching
	StateConnecting
	StateConnected
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateSearching:
		return "searching"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "invalid"
	}
}

// Profile describes the connected peer. It exists only while connected.
type Profile struct {
	Type    protocol.DeviceType
	Address string
}

// snapshot is the externally readable view of the driver, replaced as a
// whole whenever the state or profile changes.
type snapshot struct {
	state   State
	profile *Profile
}
