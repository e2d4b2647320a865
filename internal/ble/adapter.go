// Package ble abstracts the Bluetooth Low Energy central role used to reach
// an OmniWear haptic peer: scanning, connecting, GATT discovery, reads and
// writes. The driver depends only on these interfaces so it can be tested
// without a radio.
package ble

import (
	"context"

	"github.com/chaz8081/hapticlink/internal/ble/protocol"
)

// Device is a peer seen during a scan.
type Device struct {
	Name    string
	Address string
	RSSI    int
}

// Characteristic is a GATT characteristic on a connected peer.
type Characteristic interface {
	// UUID returns the characteristic identifier.
	UUID() string
	// Write sends data to the characteristic and waits for the write to complete.
	Write(data []byte) error
	// Read returns the current characteristic value.
	Read() ([]byte, error)
}

// Service is a discovered GATT service with its characteristics.
type Service struct {
	UUID            string
	Characteristics []Characteristic
}

// Characteristic returns the characteristic with the given UUID, or nil.
func (s *Service) Characteristic(uuid string) Characteristic {
	for _, c := range s.Characteristics {
		if protocol.SameUUID(c.UUID(), uuid) {
			return c
		}
	}
	return nil
}

// FindService returns the service with the given UUID, or nil.
func FindService(services []Service, uuid string) *Service {
	for i := range services {
		if protocol.SameUUID(services[i].UUID, uuid) {
			return &services[i]
		}
	}
	return nil
}

// Connection represents an active link to a peer.
type Connection interface {
	// Address returns the peer address this link was opened to.
	Address() string
	// DiscoverServices returns every service the peer advertises, with
	// characteristics already discovered.
	DiscoverServices() ([]Service, error)
	// Disconnect terminates the link.
	Disconnect() error
	// OnDisconnect registers a callback invoked once when the link drops.
	// If the link already dropped, the callback runs immediately.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE stack. It fails when BLE is unsupported.
	Enable() error
	// Scan reports every advertisement to onDevice until ctx is cancelled.
	// It returns nil when stopped through ctx.
	Scan(ctx context.Context, onDevice func(Device)) error
	// Connect opens a link to the peer with the given address.
	Connect(ctx context.Context, address string) (Connection, error)
}

// Radio reports whether the local radio is switched on.
type Radio interface {
	Powered() (bool, error)
}

// AlwaysOn is a Radio for platforms without a power query.
type AlwaysOn struct{}

// Powered always reports true.
func (AlwaysOn) Powered() (bool, error) { return true, nil }
