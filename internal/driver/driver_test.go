package driver

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/hapticlink/internal/ble/protocol"
)

const (
	testAddr = "AA:BB:CC:DD:EE:FF"
	waitFor  = 2 * time.Second
	tick     = 5 * time.Millisecond
)

// recorder collects events delivered to a listener.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// states returns the StateChanged sequence.
func (r *recorder) states() []State {
	var out []State
	for _, ev := range r.all() {
		if sc, ok := ev.(StateChanged); ok {
			out = append(out, sc.State)
		}
	}
	return out
}

func (r *recorder) count(kind string) int {
	n := 0
	for _, ev := range r.all() {
		if ev.Kind() == kind {
			n++
		}
	}
	return n
}

// logged reports whether a LogLine containing substr was emitted.
func (r *recorder) logged(substr string) bool {
	for _, ev := range r.all() {
		if l, ok := ev.(LogLine); ok && strings.Contains(l.Message, substr) {
			return true
		}
	}
	return false
}

func (r *recorder) waitLogged(t *testing.T, substr string) {
	t.Helper()
	require.Eventually(t, func() bool { return r.logged(substr) }, waitFor, tick, "no log line containing %q", substr)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.ScanTimeout = time.Second
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	opts.EventLogLevel = slog.LevelDebug
	return opts
}

func startDriver(t *testing.T, adapter *mockAdapter, store *memStore, mutate func(*Options)) (*Driver, *recorder) {
	t.Helper()
	opts := testOptions()
	if mutate != nil {
		mutate(&opts)
	}
	d, err := New(adapter, store, opts)
	require.NoError(t, err)

	rec := &recorder{}
	d.RegisterListener(rec.listen)
	require.NoError(t, d.Start())
	t.Cleanup(func() { _ = d.Close() })
	return d, rec
}

func waitState(t *testing.T, d *Driver, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return d.State() == want }, waitFor, tick, "state never became %v (is %v)", want, d.State())
}

// connectPeer drives a fresh driver to Connected against p.
func connectPeer(t *testing.T, p *peer, mutate func(*Options)) (*Driver, *mockAdapter, *recorder) {
	t.Helper()
	adapter := newMockAdapter(p.conn)
	d, rec := startDriver(t, adapter, &memStore{}, mutate)
	d.ConnectKnown(testAddr)
	waitState(t, d, StateConnected)
	return d, adapter, rec
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(nil, &memStore{}, DefaultOptions())
	assert.Error(t, err, "nil adapter")

	_, err = New(newMockAdapter(nil), nil, DefaultOptions())
	assert.Error(t, err, "nil store")

	opts := DefaultOptions()
	opts.Generation = "v9"
	_, err = New(newMockAdapter(nil), &memStore{}, opts)
	assert.Error(t, err, "unknown generation")

	opts = DefaultOptions()
	opts.Generation = protocol.GenerationLegacy
	opts.AssumedType = protocol.DeviceTypeUnknown
	_, err = New(newMockAdapter(nil), &memStore{}, opts)
	assert.Error(t, err, "legacy without assumed type")
}

func TestNewFillsDefaults(t *testing.T) {
	d, err := New(newMockAdapter(nil), &memStore{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, protocol.DeviceName, d.opts.DeviceName)
	assert.Equal(t, 10*time.Second, d.opts.ScanTimeout)
	assert.Equal(t, protocol.GenerationAuto, d.opts.Generation)
	assert.Equal(t, 16, d.opts.WriteQueue)
	assert.Equal(t, StateNone, d.State())
	assert.Equal(t, protocol.DeviceTypeUnknown, d.DeviceType())
	assert.Empty(t, d.DeviceAddress())
	require.NoError(t, d.Close())
}

func TestStartAfterCloseFails(t *testing.T) {
	d, err := New(newMockAdapter(nil), &memStore{}, testOptions())
	require.NoError(t, err)
	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Start(), ErrClosed)
	require.NoError(t, d.Close(), "Close must be idempotent")
}

func TestCloseTearsDownLink(t *testing.T) {
	p := newControlPeer([]byte{byte(protocol.DeviceTypeCap)})
	d, _, rec := connectPeer(t, p, nil)

	require.NoError(t, d.Close())
	assert.Equal(t, StateNone, d.State())
	assert.Equal(t, []State{StateConnecting, StateConnected, StateNone}, rec.states())
	require.Eventually(t, func() bool { return p.conn.Disconnects() == 1 }, waitFor, tick)
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateNone:       "none",
		StateSearching:  "searching",
		StateConnecting: "connecting",
		StateConnected:  "connected",
		State(42):       "invalid",
	}
	for s, want := range tests {
		assert.Equal(t, want, s.String())
	}
}
