package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptyTypeValue    = errors.New("protocol: empty device-type value")
	ErrUnknownDeviceType = errors.New("protocol: unknown device-type code")
)

// DeviceType is the physical form factor reported by a peer.
type DeviceType int

const (
	DeviceTypeUnknown   DeviceType = -1
	DeviceTypeCap       DeviceType = 0
	DeviceTypeNeckband  DeviceType = 1
	DeviceTypeWristband DeviceType = 2
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeCap:
		return "cap"
	case DeviceTypeNeckband:
		return "neckband"
	case DeviceTypeWristband:
		return "wristband"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the defined device-type codes.
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceTypeCap, DeviceTypeNeckband, DeviceTypeWristband:
		return true
	}
	return false
}

// ParseDeviceType maps a config name ("cap", "neckband", "wristband") to a DeviceType.
func ParseDeviceType(name string) (DeviceType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cap":
		return DeviceTypeCap, nil
	case "neckband":
		return DeviceTypeNeckband, nil
	case "wristband":
		return DeviceTypeWristband, nil
	}
	return DeviceTypeUnknown, fmt.Errorf("protocol: unknown device type name %q", name)
}

// Generation selects where the device-type code lives and how it is encoded.
type Generation string

const (
	// GenerationAuto picks control or devinfo per session based on which
	// read-point the peer exposes.
	GenerationAuto Generation = "auto"
	// GenerationLegacy has no device-type read-point.
	GenerationLegacy Generation = "legacy"
	// GenerationControl reads a raw byte from TypeCharUUID in the control service.
	GenerationControl Generation = "control"
	// GenerationDeviceInfo reads an ASCII integer from the Device Information service.
	GenerationDeviceInfo Generation = "devinfo"
)

// ParseGeneration validates a config value.
func ParseGeneration(s string) (Generation, error) {
	switch g := Generation(s); g {
	case GenerationAuto, GenerationLegacy, GenerationControl, GenerationDeviceInfo:
		return g, nil
	}
	return "", fmt.Errorf("protocol: unknown generation %q", s)
}

// MotorPayloadSize is the exact length of a motor command write.
const MotorPayloadSize = 2

// EncodeMotor builds the [motorId, intensity] write payload. Intensity is
// not clamped.
func EncodeMotor(motorID, intensity uint8) []byte {
	return []byte{motorID, intensity}
}

// DecodeDeviceType parses a device-type read using the encoding of gen.
// Only GenerationControl and GenerationDeviceInfo carry a device-type value.
func DecodeDeviceType(gen Generation, value []byte) (DeviceType, error) {
	var code int
	switch gen {
	case GenerationControl:
		if len(value) == 0 {
			return DeviceTypeUnknown, ErrEmptyTypeValue
		}
		code = int(value[0])
	case GenerationDeviceInfo:
		s := strings.TrimSpace(strings.TrimRight(string(value), "\x00"))
		if s == "" {
			return DeviceTypeUnknown, ErrEmptyTypeValue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return DeviceTypeUnknown, fmt.Errorf("protocol: parse device-type %q: %w", s, err)
		}
		code = n
	default:
		return DeviceTypeUnknown, fmt.Errorf("protocol: generation %q has no device-type value", gen)
	}

	t := DeviceType(code)
	if !t.Valid() {
		return DeviceTypeUnknown, fmt.Errorf("%w: %d", ErrUnknownDeviceType, code)
	}
	return t, nil
}
