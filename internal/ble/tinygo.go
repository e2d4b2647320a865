package ble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// TinyGoAdapter wraps tinygo-org/bluetooth (BlueZ on Linux, CoreBluetooth on
// macOS, WinRT on Windows). On macOS peer addresses are CoreBluetooth UUIDs,
// not MAC addresses; the Address fields carry that UUID string.
type TinyGoAdapter struct {
	adapter *bluetooth.Adapter

	// mu protects the connections map.
	mu          sync.Mutex
	connections map[string]*tinyGoConnection // keyed by peer address
	enabled     bool
}

// NewTinyGoAdapter creates an adapter on the platform default radio.
func NewTinyGoAdapter() *TinyGoAdapter {
	return &TinyGoAdapter{
		adapter:     bluetooth.DefaultAdapter,
		connections: make(map[string]*tinyGoConnection),
	}
}

func (a *TinyGoAdapter) Enable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.enabled {
		return nil
	}
	if err := a.adapter.Enable(); err != nil {
		return fmt.Errorf("ble: enable adapter: %w", err)
	}

	// Route adapter-level disconnects to the matching connection.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		addr := device.Address.String()
		a.mu.Lock()
		conn, ok := a.connections[addr]
		if ok {
			delete(a.connections, addr)
		}
		a.mu.Unlock()
		if ok {
			conn.dropped()
		}
	})

	a.enabled = true
	return nil
}

func (a *TinyGoAdapter) Scan(ctx context.Context, onDevice func(Device)) error {
	stopper := &scanStopper{stop: a.adapter.StopScan}
	done := make(chan struct{})
	go stopper.watch(ctx, done, stopRetryInterval)

	err := a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if ctx.Err() != nil {
			stopper.tryStop()
			return
		}
		onDevice(Device{
			Name:    result.LocalName(),
			Address: result.Address.String(),
			RSSI:    int(result.RSSI),
		})
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

// stopRetryInterval paces StopScan retries while the scan is still starting.
const stopRetryInterval = 50 * time.Millisecond

// scanStopper stops a scan exactly once. StopScan fails until the adapter has
// registered the scan, so a cancellation that arrives early is retried.
type scanStopper struct {
	stop func() error

	mu      sync.Mutex
	stopped bool
}

// tryStop reports whether the scan is stopped.
func (s *scanStopper) tryStop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return true
	}
	if s.stop() == nil {
		s.stopped = true
	}
	return s.stopped
}

// watch stops the scan once ctx is done, retrying every interval until the
// stop succeeds or done is closed.
func (s *scanStopper) watch(ctx context.Context, done <-chan struct{}, interval time.Duration) {
	select {
	case <-ctx.Done():
	case <-done:
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for !s.tryStop() {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

func (a *TinyGoAdapter) Connect(ctx context.Context, address string) (Connection, error) {
	var addr bluetooth.Address
	addr.Set(address)

	// tinygo/bluetooth's Connect blocks with its own timeout; wrap it so the
	// caller's ctx still wins.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		// A late success is torn down so the peer is not left linked.
		go func() {
			if result := <-ch; result.err == nil {
				_ = result.device.Disconnect()
			}
		}()
		return nil, fmt.Errorf("ble: connect to %s: %w", address, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("ble: connect to %s: %w", address, result.err)
		}
		conn := &tinyGoConnection{address: address, device: result.device}

		a.mu.Lock()
		a.connections[result.device.Address.String()] = conn
		a.mu.Unlock()

		return conn, nil
	}
}

// Compile-time check that TinyGoAdapter implements Adapter.
var _ Adapter = (*TinyGoAdapter)(nil)

type tinyGoConnection struct {
	address string
	device  bluetooth.Device

	mu           sync.Mutex
	disconnectCb func()
	isDropped    bool
}

func (c *tinyGoConnection) Address() string { return c.address }

func (c *tinyGoConnection) DiscoverServices() ([]Service, error) {
	svcs, err := c.device.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}

	services := make([]Service, 0, len(svcs))
	for i := range svcs {
		chars, err := svcs[i].DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("ble: discover characteristics of %s: %w", svcs[i].UUID().String(), err)
		}
		svc := Service{UUID: svcs[i].UUID().String()}
		for j := range chars {
			svc.Characteristics = append(svc.Characteristics, &tinyGoCharacteristic{char: chars[j]})
		}
		services = append(services, svc)
	}
	return services, nil
}

func (c *tinyGoConnection) Disconnect() error {
	return c.device.Disconnect()
}

func (c *tinyGoConnection) OnDisconnect(cb func()) {
	c.mu.Lock()
	if c.isDropped {
		c.mu.Unlock()
		cb()
		return
	}
	c.disconnectCb = cb
	c.mu.Unlock()
}

// dropped marks the link as gone and fires the callback at most once.
func (c *tinyGoConnection) dropped() {
	c.mu.Lock()
	if c.isDropped {
		c.mu.Unlock()
		return
	}
	c.isDropped = true
	cb := c.disconnectCb
	c.disconnectCb = nil
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// readBufferSize covers the largest ATT value (512 bytes).
const readBufferSize = 512

type tinyGoCharacteristic struct {
	char bluetooth.DeviceCharacteristic
}

func (c *tinyGoCharacteristic) UUID() string { return c.char.UUID().String() }

func (c *tinyGoCharacteristic) Write(data []byte) error {
	_, err := c.char.WriteWithoutResponse(data)
	return err
}

func (c *tinyGoCharacteristic) Read() ([]byte, error) {
	buf := make([]byte, readBufferSize)
	n, err := c.char.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}
