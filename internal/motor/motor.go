// Package motor maps logical motor locations to the motor ids each device
// type expects on the wire.
package motor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chaz8081/hapticlink/internal/ble/protocol"
)

// Intensity levels.
const (
	Off uint8 = 0
	On  uint8 = 100
)

// ErrUnsupportedLocation is returned when a device has no motor at a location.
var ErrUnsupportedLocation = errors.New("motor: location not supported by device")

// Location is a logical motor position on the wearer.
type Location uint8

const (
	Front Location = iota
	Back
	Right
	Left
	FrontRight
	FrontLeft
	BackRight
	BackLeft
	MidFront
	MidRight
	MidBack
	MidLeft
	Top
)

var locationNames = [...]string{
	Front:      "front",
	Back:       "back",
	Right:      "right",
	Left:       "left",
	FrontRight: "front-right",
	FrontLeft:  "front-left",
	BackRight:  "back-right",
	BackLeft:   "back-left",
	MidFront:   "mid-front",
	MidRight:   "mid-right",
	MidBack:    "mid-back",
	MidLeft:    "mid-left",
	Top:        "top",
}

func (l Location) String() string {
	if int(l) < len(locationNames) {
		return locationNames[l]
	}
	return fmt.Sprintf("location(%d)", uint8(l))
}

// ParseLocation accepts names like "front-right", "front_right" or "FrontRight".
func ParseLocation(name string) (Location, error) {
	key := normalize(name)
	for i, n := range locationNames {
		if normalize(n) == key {
			return Location(i), nil
		}
	}
	return 0, fmt.Errorf("motor: unknown location %q", name)
}

func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, "_", "")
}

// capRemap lists the cap locations whose motor id differs from the location code.
var capRemap = map[Location]uint8{
	MidRight: 0x0a,
	MidBack:  0x09,
}

// ID returns the wire motor id for loc on a device of type t.
func ID(t protocol.DeviceType, loc Location) (uint8, error) {
	if loc > Top {
		return 0, fmt.Errorf("motor: invalid location %d", uint8(loc))
	}
	switch t {
	case protocol.DeviceTypeCap:
		if id, ok := capRemap[loc]; ok {
			return id, nil
		}
		return uint8(loc), nil
	case protocol.DeviceTypeNeckband, protocol.DeviceTypeWristband:
		if loc > BackLeft {
			return 0, fmt.Errorf("%w: %s on %s", ErrUnsupportedLocation, loc, t)
		}
		return uint8(loc), nil
	}
	return 0, fmt.Errorf("motor: unknown device type %v", t)
}

// Locations lists the locations a device of type t supports, in code order.
func Locations(t protocol.DeviceType) []Location {
	var out []Location
	for l := Front; l <= Top; l++ {
		if _, err := ID(t, l); err == nil {
			out = append(out, l)
		}
	}
	return out
}
