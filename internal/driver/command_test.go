package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/hapticlink/internal/ble/protocol"
)

func TestSetMotorWritesInOrder(t *testing.T) {
	p := newControlPeer([]byte{byte(protocol.DeviceTypeNeckband)})
	d, _, _ := connectPeer(t, p, nil)

	d.SetMotor(2, 100)
	d.SetMotor(2, 0)
	d.SetMotor(5, 40)
	require.Eventually(t, func() bool { return len(p.motor.Writes()) == 3 }, waitFor, tick)
	assert.Equal(t, [][]byte{{2, 100}, {2, 0}, {5, 40}}, p.motor.Writes())
}

func TestSetMotorWhileDisconnected(t *testing.T) {
	p := newControlPeer([]byte{byte(protocol.DeviceTypeCap)})
	adapter := newMockAdapter(p.conn)
	d, rec := startDriver(t, adapter, &memStore{}, nil)

	d.SetMotor(1, 100)
	rec.waitLogged(t, "not connected")

	d.ConnectKnown(testAddr)
	waitState(t, d, StateConnected)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, p.motor.Writes(), "commands issued before connecting are not replayed")
}

func TestSetMotorWhileConnecting(t *testing.T) {
	p := newControlPeer([]byte{byte(protocol.DeviceTypeCap)})
	p.conn.discoverGate = make(chan struct{})
	adapter := newMockAdapter(p.conn)
	d, rec := startDriver(t, adapter, &memStore{}, nil)

	d.ConnectKnown(testAddr)
	require.Eventually(t, p.conn.Watching, waitFor, tick)
	d.SetMotor(1, 100)
	rec.waitLogged(t, "not connected")

	close(p.conn.discoverGate)
	waitState(t, d, StateConnected)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, p.motor.Writes())
}

func TestSetMotorQueueFullDropsNewest(t *testing.T) {
	p := newControlPeer([]byte{byte(protocol.DeviceTypeCap)})
	p.motor.gate = make(chan struct{})
	d, _, rec := connectPeer(t, p, func(o *Options) {
		o.WriteQueue = 1
	})

	d.SetMotor(1, 1)
	require.Eventually(t, func() bool { return p.motor.Calls() == 1 }, waitFor, tick)
	d.SetMotor(2, 2)
	d.SetMotor(3, 3)
	rec.waitLogged(t, "write queue full")

	close(p.motor.gate)
	require.Eventually(t, func() bool { return len(p.motor.Writes()) == 2 }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, [][]byte{{1, 1}, {2, 2}}, p.motor.Writes())
}

func TestSetMotorAfterDisconnect(t *testing.T) {
	p := newControlPeer([]byte{byte(protocol.DeviceTypeWristband)})
	d, _, rec := connectPeer(t, p, nil)

	d.SetMotor(0, 100)
	require.Eventually(t, func() bool { return len(p.motor.Writes()) == 1 }, waitFor, tick)

	d.Disconnect()
	waitState(t, d, StateNone)
	d.SetMotor(0, 0)
	rec.waitLogged(t, "not connected")
	assert.Len(t, p.motor.Writes(), 1)
}
