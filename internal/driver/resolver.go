package driver

import (
	"errors"
	"fmt"

	"github.com/chaz8081/hapticlink/internal/ble"
	"github.com/chaz8081/hapticlink/internal/ble/protocol"
)

// Capability resolution runs while Connecting (or, for the legacy
// generation, right after Connected):
//
//	link up -> discover services -> control service -> motor point
//	        -> device-type point -> read -> validate -> Connected
//
// Any failure ends the session; nothing is retried.

func (d *Driver) discover(s *session) {
	id, conn := s.id, s.conn
	go func() {
		services, err := conn.DiscoverServices()
		d.post(evServices{session: id, services: services, err: err})
	}()
}

func (d *Driver) handleServices(m evServices) {
	s := d.currentLink(m.session)
	if s == nil || s.conn == nil {
		return
	}
	log := d.resolvLog.With("address", s.address)
	if m.err != nil {
		d.failResolution(fmt.Errorf("discover services: %w", m.err))
		return
	}

	control := ble.FindService(m.services, protocol.ControlServiceUUID)
	if control == nil {
		d.failResolution(ErrServiceNotFound)
		return
	}
	motor := control.Characteristic(protocol.MotorCharUUID)
	if motor == nil {
		d.failResolution(ErrMotorCharNotFound)
		return
	}
	s.motorChar = motor

	if s.generation == protocol.GenerationLegacy {
		s.writer = newWriter(d, s, d.opts.WriteQueue)
		log.Info("motor characteristic ready")
		return
	}

	gen, typeChar := locateTypeChar(s.generation, control, m.services)
	if typeChar == nil {
		d.failResolution(ErrTypeCharNotFound)
		return
	}
	s.generation = gen
	s.typeChar = typeChar
	log.Debug("reading device type", "generation", string(gen))

	id := s.id
	go func() {
		value, err := typeChar.Read()
		d.post(evTypeRead{session: id, value: value, err: err})
	}()
}

// locateTypeChar finds the device-type point for gen. GenerationAuto settles
// on exactly one concrete generation, preferring the control service.
func locateTypeChar(gen protocol.Generation, control *ble.Service, services []ble.Service) (protocol.Generation, ble.Characteristic) {
	inControl := func() ble.Characteristic {
		return control.Characteristic(protocol.TypeCharUUID)
	}
	inDeviceInfo := func() ble.Characteristic {
		info := ble.FindService(services, protocol.DeviceInfoServiceUUID)
		if info == nil {
			return nil
		}
		return info.Characteristic(protocol.ModelNumberCharUUID)
	}

	switch gen {
	case protocol.GenerationControl:
		return gen, inControl()
	case protocol.GenerationDeviceInfo:
		return gen, inDeviceInfo()
	case protocol.GenerationAuto:
		if c := inControl(); c != nil {
			return protocol.GenerationControl, c
		}
		if c := inDeviceInfo(); c != nil {
			return protocol.GenerationDeviceInfo, c
		}
	}
	return gen, nil
}

func (d *Driver) handleTypeRead(m evTypeRead) {
	s := d.currentLink(m.session)
	if s == nil || s.typeChar == nil {
		return
	}
	if m.err != nil {
		d.failResolution(fmt.Errorf("read device type: %w", m.err))
		return
	}
	t, err := protocol.DecodeDeviceType(s.generation, m.value)
	if err != nil {
		d.failResolution(fmt.Errorf("%w: %w", ErrInvalidDeviceType, err))
		return
	}

	s.profile = &Profile{Type: t, Address: s.address}
	s.writer = newWriter(d, s, d.opts.WriteQueue)
	d.resolvLog.Info("device ready", "address", s.address, "type", t.String(), "generation", string(s.generation))
	d.setState(StateConnected)
}

// failResolution ends the session after a protocol violation.
func (d *Driver) failResolution(err error) {
	s := d.link
	d.resolvLog.Error("capability resolution failed", "address", s.address, "error", err)
	if errors.Is(err, ErrServiceNotFound) && d.opts.ForgetOnProtocolError {
		if serr := d.store.SaveAddress(""); serr != nil {
			d.resolvLog.Error("forgetting device", "error", serr)
		} else {
			d.resolvLog.Warn("forgot device without control service", "address", s.address)
		}
	}
	d.teardown(true)
}
