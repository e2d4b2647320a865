package driver

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/chaz8081/hapticlink/internal/ble"
	"github.com/chaz8081/hapticlink/internal/ble/protocol"
)

// session is one physical link attempt and everything resolved on it.
// Handles never outlive the session.
type session struct {
	id      uint64
	address string
	cancel  context.CancelFunc
	log     *slog.Logger

	conn       ble.Connection
	generation protocol.Generation
	motorChar  ble.Characteristic
	typeChar   ble.Characteristic
	profile    *Profile
	writer     *writer
}

// currentLink returns the live session for id, or nil.
func (d *Driver) currentLink(id uint64) *session {
	if d.link == nil || d.link.id != id {
		return nil
	}
	return d.link
}

func (d *Driver) connect(address string) {
	if address == "" {
		d.linkLog.Warn("connect ignored: empty address")
		return
	}
	if d.state == StateConnecting || d.state == StateConnected {
		d.linkLog.Warn("connect ignored", "state", d.state.String(), "address", address)
		return
	}
	if d.scan != nil {
		d.stopScan()
	}
	if err := d.checkRadio(); err != nil {
		d.linkLog.Error("cannot connect", "address", address, "error", err)
		d.setState(StateNone)
		return
	}

	id := d.newID()
	ctx, cancel := context.WithCancel(d.ctx)
	s := &session{
		id:         id,
		address:    address,
		cancel:     cancel,
		generation: d.opts.Generation,
		log:        d.linkLog.With("session", uuid.New().String()),
	}
	d.link = s
	d.setState(StateConnecting)
	s.log.Info("connecting", "address", address)

	go func() {
		conn, err := d.adapter.Connect(ctx, address)
		if err != nil {
			d.post(evLinkFailed{session: id, err: err})
			return
		}
		conn.OnDisconnect(func() {
			d.post(evLinkDown{session: id})
		})
		d.post(evLinkUp{session: id, conn: conn})
	}()
}

func (d *Driver) handleLinkUp(m evLinkUp) {
	s := d.currentLink(m.session)
	if s == nil || s.conn != nil {
		// Cancelled while the link was opening.
		go m.conn.Disconnect()
		return
	}
	s.conn = m.conn
	s.log.Info("link connected")

	if s.generation == protocol.GenerationLegacy {
		s.profile = &Profile{Type: d.opts.AssumedType, Address: s.address}
		d.setState(StateConnected)
	}
	d.discover(s)
}

func (d *Driver) handleLinkFailed(m evLinkFailed) {
	s := d.currentLink(m.session)
	if s == nil {
		return
	}
	s.log.Error("connect failed", "error", m.err)
	d.teardown(false)
}

func (d *Driver) handleLinkDown(m evLinkDown) {
	s := d.currentLink(m.session)
	if s == nil {
		return
	}
	s.log.Warn("link lost")
	d.teardown(false)
}

// teardown drops the session, its handles and profile, and returns to None.
func (d *Driver) teardown(closeLink bool) {
	s := d.link
	d.link = nil
	s.cancel()
	if s.writer != nil {
		s.writer.stop()
	}
	if closeLink && s.conn != nil {
		conn := s.conn
		go func() {
			if err := conn.Disconnect(); err != nil {
				s.log.Debug("disconnect", "error", err)
			}
		}()
	}
	s.conn, s.motorChar, s.typeChar, s.profile = nil, nil, nil, nil
	d.setState(StateNone)
}

func (d *Driver) handleDisconnect() {
	if d.scan != nil {
		d.stopScan()
	}
	if d.link != nil {
		d.link.log.Info("disconnecting")
		d.teardown(true)
		return
	}
	d.setState(StateNone)
}

func (d *Driver) handleForget() {
	if err := d.store.SaveAddress(""); err != nil {
		d.linkLog.Error("forgetting device", "error", err)
		return
	}
	d.linkLog.Info("device forgotten")
}

func (d *Driver) handleResume() {
	if d.state != StateNone {
		return
	}
	address, err := d.store.LoadAddress()
	if err != nil {
		d.linkLog.Error("loading saved address", "error", err)
		return
	}
	if address == "" {
		d.linkLog.Debug("no saved device")
		return
	}
	d.linkLog.Info("resuming saved device", "address", address)
	d.connect(address)
}
