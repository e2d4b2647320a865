package driver

import (
	"context"

	"github.com/chaz8081/hapticlink/internal/ble"
	"github.com/chaz8081/hapticlink/internal/ble/protocol"
)

func (d *Driver) handleSetMotor(motor, intensity uint8) {
	s := d.link
	if d.state != StateConnected || s == nil || s.profile == nil || s.motorChar == nil || s.writer == nil {
		d.cmdLog.Warn("motor command dropped: not connected", "motor", motor, "intensity", intensity)
		return
	}
	if !s.writer.enqueue(protocol.EncodeMotor(motor, intensity)) {
		d.cmdLog.Warn("motor command dropped: write queue full", "motor", motor, "intensity", intensity)
	}
}

func (d *Driver) handleWriteDone(m evWriteDone) {
	if d.currentLink(m.session) == nil {
		return
	}
	if m.err != nil {
		d.cmdLog.Warn("motor write failed", "payload", m.payload, "error", m.err)
		return
	}
	d.cmdLog.Debug("motor write", "payload", m.payload)
}

// writer performs one session's characteristic writes in order, one at a
// time. When the queue is full the newest command is dropped.
type writer struct {
	queue  chan []byte
	cancel context.CancelFunc
}

func newWriter(d *Driver, s *session, size int) *writer {
	ctx, cancel := context.WithCancel(d.ctx)
	w := &writer{queue: make(chan []byte, size), cancel: cancel}
	go w.run(ctx, d, s.id, s.motorChar)
	return w
}

func (w *writer) run(ctx context.Context, d *Driver, session uint64, char ble.Characteristic) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-w.queue:
			if ctx.Err() != nil {
				return
			}
			err := char.Write(payload)
			d.post(evWriteDone{session: session, payload: payload, err: err})
		}
	}
}

func (w *writer) enqueue(payload []byte) bool {
	select {
	case w.queue <- payload:
		return true
	default:
		return false
	}
}

func (w *writer) stop() {
	w.cancel()
}
