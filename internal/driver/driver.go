// Package driver owns the connection to one OmniWear haptic peer: scanning,
// link life cycle, capability resolution, motor commands and the event
// stream. All state lives in a single goroutine; public methods post
// messages to it and never block on the radio.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/hapticlink/internal/ble"
	"github.com/chaz8081/hapticlink/internal/ble/protocol"
)

// Resolution failures. Each one ends the session.
var (
	ErrServiceNotFound   = errors.New("driver: control service not found")
	ErrMotorCharNotFound = errors.New("driver: motor characteristic not found")
	ErrTypeCharNotFound  = errors.New("driver: device-type characteristic not found")
	ErrInvalidDeviceType = errors.New("driver: invalid device type")
	ErrClosed            = errors.New("driver: closed")
)

// AddressStore persists the last known peer address. An empty string means
// no known device.
type AddressStore interface {
	LoadAddress() (string, error)
	SaveAddress(address string) error
}

// Options configures the driver behavior.
type Options struct {
	DeviceName            string              // exact advertised name to match
	ScanTimeout           time.Duration       // give up a scan after this long
	Generation            protocol.Generation // where the device-type code lives
	AssumedType           protocol.DeviceType // profile type for GenerationLegacy
	ForgetOnProtocolError bool                // forget the saved address when the control service is missing
	WriteQueue            int                 // pending motor writes per session
	Radio                 ble.Radio           // power probe checked before scans and connects
	Logger                *slog.Logger        // base logger; records are also emitted as LogLine events
	EventLogLevel         slog.Level          // minimum level for LogLine events
}

// DefaultOptions returns the reference behavior.
func DefaultOptions() Options {
	return Options{
		DeviceName:    protocol.DeviceName,
		ScanTimeout:   10 * time.Second,
		Generation:    protocol.GenerationAuto,
		AssumedType:   protocol.DeviceTypeNeckband,
		WriteQueue:    16,
		Radio:         ble.AlwaysOn{},
		EventLogLevel: slog.LevelInfo,
	}
}

// Driver is the connection and control-protocol state machine.
type Driver struct {
	adapter  ble.Adapter
	store    AddressStore
	opts     Options
	notifier *Notifier

	log       *slog.Logger
	scanLog   *slog.Logger
	linkLog   *slog.Logger
	cmdLog    *slog.Logger
	resolvLog *slog.Logger

	inbox mailbox
	snap  atomic.Pointer[snapshot]

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	done      chan struct{}

	// Owned by the run goroutine.
	state  State
	scan   *scanSession
	link   *session
	nextID uint64
}

// New creates a driver. Call Start to begin processing.
func New(adapter ble.Adapter, store AddressStore, opts Options) (*Driver, error) {
	if adapter == nil {
		return nil, fmt.Errorf("driver: nil adapter")
	}
	if store == nil {
		return nil, fmt.Errorf("driver: nil address store")
	}
	def := DefaultOptions()
	if opts.DeviceName == "" {
		opts.DeviceName = def.DeviceName
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = def.ScanTimeout
	}
	if opts.Generation == "" {
		opts.Generation = def.Generation
	}
	if _, err := protocol.ParseGeneration(string(opts.Generation)); err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	if opts.Generation == protocol.GenerationLegacy && !opts.AssumedType.Valid() {
		return nil, fmt.Errorf("driver: legacy generation needs a valid assumed type, got %v", opts.AssumedType)
	}
	if opts.WriteQueue <= 0 {
		opts.WriteQueue = def.WriteQueue
	}
	if opts.Radio == nil {
		opts.Radio = def.Radio
	}
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}

	d := &Driver{
		adapter:  adapter,
		store:    store,
		opts:     opts,
		notifier: &Notifier{},
		done:     make(chan struct{}),
	}
	d.inbox.init()
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.log = slog.New(newEventHandler(base.Handler(), d.notifier, opts.EventLogLevel))
	d.scanLog = d.log.With(tagKey, "scanner")
	d.linkLog = d.log.With(tagKey, "link")
	d.resolvLog = d.log.With(tagKey, "resolver")
	d.cmdLog = d.log.With(tagKey, "command")
	d.snap.Store(&snapshot{state: StateNone})
	return d, nil
}

// Start launches the state machine and, once per driver, reconnects to the
// saved address if there is one.
func (d *Driver) Start() error {
	if d.ctx.Err() != nil {
		return ErrClosed
	}
	d.startOnce.Do(func() {
		go d.run()
		d.post(cmdResume{})
	})
	return nil
}

// Close stops the state machine, cancelling any scan and closing any link.
func (d *Driver) Close() error {
	started := false
	d.startOnce.Do(func() { close(d.done) })
	select {
	case <-d.done:
	default:
		started = true
	}
	d.cancel()
	if started {
		<-d.done
	}
	return nil
}

// RegisterListener installs l as the only event listener; nil disables delivery.
func (d *Driver) RegisterListener(l Listener) { d.notifier.Register(l) }

// UnregisterListener removes the event listener.
func (d *Driver) UnregisterListener() { d.notifier.Unregister() }

// Search scans for a peer advertising the configured name.
func (d *Driver) Search() { d.post(cmdSearch{}) }

// ConnectKnown opens a link to address and resolves its capabilities.
func (d *Driver) ConnectKnown(address string) { d.post(cmdConnect{address: address}) }

// Disconnect closes any active or pending link and stops any scan.
func (d *Driver) Disconnect() { d.post(cmdDisconnect{}) }

// Forget clears the saved peer address.
func (d *Driver) Forget() { d.post(cmdForget{}) }

// SetMotor writes [motorID, intensity] to the peer. It is dropped unless the
// driver is connected with a resolved profile.
func (d *Driver) SetMotor(motorID, intensity uint8) {
	d.post(cmdSetMotor{motor: motorID, intensity: intensity})
}

// State returns the current connection state.
func (d *Driver) State() State { return d.snap.Load().state }

// Profile returns the connected peer profile.
func (d *Driver) Profile() (Profile, bool) {
	p := d.snap.Load().profile
	if p == nil {
		return Profile{}, false
	}
	return *p, true
}

// DeviceType returns the connected device type, or DeviceTypeUnknown.
func (d *Driver) DeviceType() protocol.DeviceType {
	if p, ok := d.Profile(); ok {
		return p.Type
	}
	return protocol.DeviceTypeUnknown
}

// DeviceAddress returns the connected peer address, or "".
func (d *Driver) DeviceAddress() string {
	if p, ok := d.Profile(); ok {
		return p.Address
	}
	return ""
}

func (d *Driver) post(m message) {
	if d.ctx.Err() != nil {
		return
	}
	d.inbox.put(m)
}

func (d *Driver) run() {
	defer close(d.done)
	for {
		select {
		case <-d.ctx.Done():
			d.shutdown()
			return
		case <-d.inbox.signal:
			for _, m := range d.inbox.drain() {
				if d.ctx.Err() != nil {
					break
				}
				d.handle(m)
			}
		}
	}
}

func (d *Driver) handle(m message) {
	switch m := m.(type) {
	case cmdSearch:
		d.handleSearch()
	case cmdConnect:
		d.connect(m.address)
	case cmdDisconnect:
		d.handleDisconnect()
	case cmdForget:
		d.handleForget()
	case cmdResume:
		d.handleResume()
	case cmdSetMotor:
		d.handleSetMotor(m.motor, m.intensity)
	case evScanResult:
		d.handleScanResult(m)
	case evScanTimeout:
		d.handleScanTimeout(m)
	case evScanStopped:
		d.handleScanStopped(m)
	case evLinkUp:
		d.handleLinkUp(m)
	case evLinkFailed:
		d.handleLinkFailed(m)
	case evLinkDown:
		d.handleLinkDown(m)
	case evServices:
		d.handleServices(m)
	case evTypeRead:
		d.handleTypeRead(m)
	case evWriteDone:
		d.handleWriteDone(m)
	}
}

func (d *Driver) shutdown() {
	if d.scan != nil {
		d.stopScan()
	}
	if d.link != nil {
		d.teardown(true)
	}
	d.setState(StateNone)
}

// setState publishes the new state before emitting it.
func (d *Driver) setState(s State) {
	if d.state == s {
		return
	}
	prev := d.state
	d.state = s
	var profile *Profile
	if d.link != nil && s == StateConnected {
		profile = d.link.profile
	}
	d.snap.Store(&snapshot{state: s, profile: profile})
	d.log.Debug("state changed", "from", prev.String(), "to", s.String())
	d.notifier.Emit(StateChanged{State: s})
}

func (d *Driver) newID() uint64 {
	d.nextID++
	return d.nextID
}

// checkRadio reports an error when the adapter cannot be used.
func (d *Driver) checkRadio() error {
	powered, err := d.opts.Radio.Powered()
	if err != nil {
		return fmt.Errorf("radio unavailable: %w", err)
	}
	if !powered {
		return fmt.Errorf("radio is switched off")
	}
	if err := d.adapter.Enable(); err != nil {
		return err
	}
	return nil
}
