// Package protocol holds the fixed identifiers and wire encodings of the
// OmniWear haptic control protocol.
package protocol

import (
	"strings"

	"github.com/google/uuid"
)

// DeviceName is the exact advertised local name of a haptic peer.
const DeviceName = "OmniWear"

// Control service and its access points.
const (
	ControlServiceUUID = "99700001-ad20-11e6-8000-00805f9b34fb"
	MotorCharUUID      = "99700002-ad20-11e6-8000-00805f9b34fb"
	TypeCharUUID       = "99700003-ad20-11e6-8000-00805f9b34fb"
)

// Standard Device Information service (0x180A) and its Model Number String
// characteristic (0x2A24), used by firmware that reports the form factor there.
const (
	DeviceInfoServiceUUID = "0000180a-0000-1000-8000-00805f9b34fb"
	ModelNumberCharUUID   = "00002a24-0000-1000-8000-00805f9b34fb"
)

// SameUUID reports whether a and b name the same UUID regardless of case or
// formatting. Unparseable strings fall back to a case-insensitive compare.
func SameUUID(a, b string) bool {
	ua, errA := uuid.Parse(a)
	ub, errB := uuid.Parse(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return ua == ub
}
