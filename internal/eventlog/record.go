// Package eventlog records the driver event stream to a CBOR file and reads
// it back.
package eventlog

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/chaz8081/hapticlink/internal/driver"
)

// Record is one recorded driver event. CBOR encoding uses integer keys for
// compactness; the JSON form is what the daemon streams to subscribers.
type Record struct {
	Timestamp time.Time `cbor:"1,keyasint" json:"time"`
	Kind      string    `cbor:"2,keyasint" json:"kind"`
	// State is set for state_changed, Address for device_found, and the
	// remaining fields for log.
	State   string `cbor:"3,keyasint,omitempty" json:"state,omitempty"`
	Address string `cbor:"4,keyasint,omitempty" json:"address,omitempty"`
	Level   string `cbor:"5,keyasint,omitempty" json:"level,omitempty"`
	Tag     string `cbor:"6,keyasint,omitempty" json:"tag,omitempty"`
	Message string `cbor:"7,keyasint,omitempty" json:"message,omitempty"`
}

// FromEvent converts a driver event observed at ts.
func FromEvent(ev driver.Event, ts time.Time) Record {
	r := Record{Timestamp: ts, Kind: ev.Kind()}
	switch e := ev.(type) {
	case driver.StateChanged:
		r.State = e.State.String()
	case driver.DeviceFound:
		r.Address = e.Address
	case driver.LogLine:
		r.Level = e.Level.String()
		r.Tag = e.Tag
		r.Message = e.Message
	}
	return r
}

// String renders the record as one line.
func (r Record) String() string {
	ts := r.Timestamp.Format("15:04:05.000")
	switch r.Kind {
	case driver.StateChanged{}.Kind():
		return fmt.Sprintf("%s state     %s", ts, r.State)
	case driver.DeviceFound{}.Kind():
		return fmt.Sprintf("%s found     %s", ts, r.Address)
	case driver.DeviceNotFound{}.Kind():
		return fmt.Sprintf("%s not found", ts)
	case driver.LogLine{}.Kind():
		return fmt.Sprintf("%s %-5s [%s] %s", ts, r.Level, r.Tag, r.Message)
	}
	return fmt.Sprintf("%s %s", ts, r.Kind)
}

// LogLevel parses the recorded log level.
func (r Record) LogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(r.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create event CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create event CBOR decoder mode: %v", err))
	}
}

func newEncoder(w io.Writer) *cbor.Encoder { return encMode.NewEncoder(w) }

func newDecoder(r io.Reader) *cbor.Decoder { return decMode.NewDecoder(r) }
