package driver

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/hapticlink/internal/ble/protocol"
)

func TestConnectKnownResolvesProfile(t *testing.T) {
	p := newControlPeer([]byte{byte(protocol.DeviceTypeCap)})
	d, adapter, rec := connectPeer(t, p, nil)

	assert.Equal(t, []State{StateConnecting, StateConnected}, rec.states())
	assert.Equal(t, []string{testAddr}, adapter.Connects())
	assert.Equal(t, protocol.DeviceTypeCap, d.DeviceType())
	assert.Equal(t, testAddr, d.DeviceAddress())
}

func TestConnectKnownRejectsReentrant(t *testing.T) {
	p := newControlPeer([]byte{byte(protocol.DeviceTypeWristband)})
	p.conn.discoverGate = make(chan struct{})
	adapter := newMockAdapter(p.conn)
	d, rec := startDriver(t, adapter, &memStore{}, nil)

	d.ConnectKnown(testAddr)
	d.ConnectKnown("11:22:33:44:55:66")
	rec.waitLogged(t, "connect ignored")
	assert.Equal(t, StateConnecting, d.State())

	close(p.conn.discoverGate)
	waitState(t, d, StateConnected)
	assert.Equal(t, []string{testAddr}, adapter.Connects())
	assert.Equal(t, []State{StateConnecting, StateConnected}, rec.states())

	d.ConnectKnown("11:22:33:44:55:66")
	require.Eventually(t, func() bool {
		n := 0
		for _, ev := range rec.all() {
			if l, ok := ev.(LogLine); ok && l.Tag == "link" && strings.Contains(l.Message, "connect ignored") {
				n++
			}
		}
		return n == 2
	}, waitFor, tick)
	assert.Equal(t, []string{testAddr}, adapter.Connects())
}

func TestConnectEmptyAddressIgnored(t *testing.T) {
	adapter := newMockAdapter(nil)
	d, rec := startDriver(t, adapter, &memStore{}, nil)

	d.ConnectKnown("")
	rec.waitLogged(t, "empty address")
	assert.Equal(t, StateNone, d.State())
	assert.Empty(t, adapter.Connects())
	assert.Empty(t, rec.states())
}

func TestConnectFailureReturnsToNone(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.connectErr = errors.New("page timeout")
	d, rec := startDriver(t, adapter, &memStore{}, nil)

	d.ConnectKnown(testAddr)
	rec.waitLogged(t, "page timeout")
	waitState(t, d, StateNone)
	assert.Equal(t, []State{StateConnecting, StateNone}, rec.states())
	_, ok := d.Profile()
	assert.False(t, ok)
}

func TestConnectWithRadioOff(t *testing.T) {
	adapter := newMockAdapter(nil)
	d, rec := startDriver(t, adapter, &memStore{}, func(o *Options) {
		o.Radio = mockRadio{powered: false}
	})

	d.ConnectKnown(testAddr)
	rec.waitLogged(t, "cannot connect")
	assert.Equal(t, StateNone, d.State())
	assert.Empty(t, adapter.Connects())
}

func TestLinkDropDuringResolution(t *testing.T) {
	p := newControlPeer([]byte{byte(protocol.DeviceTypeCap)})
	p.conn.discoverGate = make(chan struct{})
	adapter := newMockAdapter(p.conn)
	d, rec := startDriver(t, adapter, &memStore{}, nil)

	d.ConnectKnown(testAddr)
	require.Eventually(t, p.conn.Watching, waitFor, tick)
	p.conn.SimulateDisconnect()
	waitState(t, d, StateNone)

	close(p.conn.discoverGate)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, StateNone, d.State())
	assert.NotContains(t, rec.states(), StateConnected)
	_, ok := d.Profile()
	assert.False(t, ok)
	assert.Equal(t, protocol.DeviceTypeUnknown, d.DeviceType())
}

func TestLinkDropWhileConnected(t *testing.T) {
	p := newControlPeer([]byte{byte(protocol.DeviceTypeNeckband)})
	d, _, rec := connectPeer(t, p, nil)

	p.conn.SimulateDisconnect()
	waitState(t, d, StateNone)
	assert.Equal(t, []State{StateConnecting, StateConnected, StateNone}, rec.states())
	assert.Empty(t, d.DeviceAddress())

	d.SetMotor(1, 100)
	rec.waitLogged(t, "not connected")
	assert.Empty(t, p.motor.Writes())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	p := newControlPeer([]byte{byte(protocol.DeviceTypeCap)})
	adapter := newMockAdapter(p.conn)
	d, rec := startDriver(t, adapter, &memStore{}, nil)

	d.Disconnect()
	d.Disconnect()
	d.ConnectKnown(testAddr)
	waitState(t, d, StateConnected)

	d.Disconnect()
	d.Disconnect()
	waitState(t, d, StateNone)
	require.Eventually(t, func() bool { return p.conn.Disconnects() == 1 }, waitFor, tick)

	d.ConnectKnown(testAddr)
	waitState(t, d, StateConnected)
	assert.Equal(t, []State{
		StateConnecting, StateConnected, StateNone,
		StateConnecting, StateConnected,
	}, rec.states())
	assert.Equal(t, 1, p.conn.Disconnects())
}

func TestDisconnectStopsSearch(t *testing.T) {
	adapter := newMockAdapter(nil)
	d, rec := startDriver(t, adapter, &memStore{}, func(o *Options) {
		o.ScanTimeout = 100 * time.Millisecond
	})

	d.Search()
	waitState(t, d, StateSearching)
	d.Disconnect()
	waitState(t, d, StateNone)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, []State{StateSearching, StateNone}, rec.states())
	assert.Equal(t, 0, rec.count(DeviceNotFound{}.Kind()))
}

func TestDisconnectCancelsPendingConnect(t *testing.T) {
	p := newControlPeer([]byte{byte(protocol.DeviceTypeCap)})
	p.conn.discoverGate = make(chan struct{})
	adapter := newMockAdapter(p.conn)
	d, rec := startDriver(t, adapter, &memStore{}, nil)

	d.ConnectKnown(testAddr)
	require.Eventually(t, p.conn.Watching, waitFor, tick)
	d.Disconnect()
	waitState(t, d, StateNone)
	close(p.conn.discoverGate)

	require.Eventually(t, func() bool { return p.conn.Disconnects() >= 1 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.NotContains(t, rec.states(), StateConnected)
}

func TestResumeConnectsSavedAddressOnce(t *testing.T) {
	p := newControlPeer([]byte{byte(protocol.DeviceTypeCap)})
	adapter := newMockAdapter(p.conn)
	d, _ := startDriver(t, adapter, &memStore{address: testAddr}, nil)

	waitState(t, d, StateConnected)
	require.NoError(t, d.Start())
	require.NoError(t, d.Start())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{testAddr}, adapter.Connects())
}

func TestResumeWithoutSavedAddress(t *testing.T) {
	adapter := newMockAdapter(nil)
	d, rec := startDriver(t, adapter, &memStore{}, nil)

	rec.waitLogged(t, "no saved device")
	assert.Equal(t, StateNone, d.State())
	assert.Empty(t, adapter.Connects())
}

func TestResumeLoadError(t *testing.T) {
	adapter := newMockAdapter(nil)
	_, rec := startDriver(t, adapter, &memStore{loadErr: errors.New("corrupt state file")}, nil)

	rec.waitLogged(t, "corrupt state file")
	assert.Empty(t, adapter.Connects())
}

func TestForgetClearsSavedAddress(t *testing.T) {
	p := newControlPeer([]byte{byte(protocol.DeviceTypeCap)})
	adapter := newMockAdapter(p.conn)
	store := &memStore{address: testAddr}
	d, rec := startDriver(t, adapter, store, nil)
	waitState(t, d, StateConnected)

	d.Forget()
	rec.waitLogged(t, "device forgotten")
	assert.Empty(t, store.Address())
	assert.Equal(t, StateConnected, d.State(), "forget keeps the current link")
}
