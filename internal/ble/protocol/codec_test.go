package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeMotor(t *testing.T) {
	got := EncodeMotor(2, 100)
	want := []byte{0x02, 0x64}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeMotor(2, 100) = %x, want %x", got, want)
	}
	if len(got) != MotorPayloadSize {
		t.Errorf("len = %d, want %d", len(got), MotorPayloadSize)
	}
}

func TestEncodeMotorPassesThroughOutOfRangeIntensity(t *testing.T) {
	got := EncodeMotor(0, 250)
	if got[1] != 250 {
		t.Errorf("intensity byte = %d, want 250 (no clamping)", got[1])
	}
}

func TestDecodeDeviceType(t *testing.T) {
	tests := []struct {
		name    string
		gen     Generation
		value   []byte
		want    DeviceType
		wantErr error
	}{
		{name: "control cap", gen: GenerationControl, value: []byte{0}, want: DeviceTypeCap},
		{name: "control neckband", gen: GenerationControl, value: []byte{1}, want: DeviceTypeNeckband},
		{name: "control wristband", gen: GenerationControl, value: []byte{2, 0xff}, want: DeviceTypeWristband},
		{name: "control unknown code", gen: GenerationControl, value: []byte{7}, want: DeviceTypeUnknown, wantErr: ErrUnknownDeviceType},
		{name: "control empty", gen: GenerationControl, value: nil, want: DeviceTypeUnknown, wantErr: ErrEmptyTypeValue},
		{name: "devinfo string", gen: GenerationDeviceInfo, value: []byte("1"), want: DeviceTypeNeckband},
		{name: "devinfo padded", gen: GenerationDeviceInfo, value: []byte(" 2\x00\x00"), want: DeviceTypeWristband},
		{name: "devinfo out of range", gen: GenerationDeviceInfo, value: []byte("-1"), want: DeviceTypeUnknown, wantErr: ErrUnknownDeviceType},
		{name: "devinfo empty", gen: GenerationDeviceInfo, value: []byte("\x00"), want: DeviceTypeUnknown, wantErr: ErrEmptyTypeValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeDeviceType(tt.gen, tt.value)
			if got != tt.want {
				t.Errorf("DecodeDeviceType() = %v, want %v", got, tt.want)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeDeviceType() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("DecodeDeviceType() unexpected error = %v", err)
			}
		})
	}
}

func TestDecodeDeviceTypeRawByteIsNotText(t *testing.T) {
	// ASCII '1' is 0x31 as a raw byte, which is not a valid code.
	if _, err := DecodeDeviceType(GenerationControl, []byte("1")); err == nil {
		t.Error("control generation must not parse text values")
	}
}

func TestDecodeDeviceTypeNotANumber(t *testing.T) {
	if _, err := DecodeDeviceType(GenerationDeviceInfo, []byte("OW-CAP")); err == nil {
		t.Error("expected parse error for non-numeric model string")
	}
}

func TestDecodeDeviceTypeLegacyHasNoValue(t *testing.T) {
	if _, err := DecodeDeviceType(GenerationLegacy, []byte{0}); err == nil {
		t.Error("legacy generation should not decode device-type values")
	}
}

func TestParseGeneration(t *testing.T) {
	for _, s := range []string{"auto", "legacy", "control", "devinfo"} {
		if _, err := ParseGeneration(s); err != nil {
			t.Errorf("ParseGeneration(%q) error = %v", s, err)
		}
	}
	if _, err := ParseGeneration("v9"); err == nil {
		t.Error("ParseGeneration(v9) should fail")
	}
}

func TestParseDeviceType(t *testing.T) {
	got, err := ParseDeviceType("Neckband")
	if err != nil || got != DeviceTypeNeckband {
		t.Errorf("ParseDeviceType(Neckband) = %v, %v", got, err)
	}
	if _, err := ParseDeviceType("glove"); err == nil {
		t.Error("ParseDeviceType(glove) should fail")
	}
}

func TestSameUUID(t *testing.T) {
	if !SameUUID("99700001-AD20-11E6-8000-00805F9B34FB", ControlServiceUUID) {
		t.Error("SameUUID should ignore case")
	}
	if SameUUID(ControlServiceUUID, MotorCharUUID) {
		t.Error("SameUUID matched different UUIDs")
	}
	if !SameUUID("not-a-uuid", "NOT-A-UUID") {
		t.Error("SameUUID should fall back to case-insensitive compare")
	}
}
