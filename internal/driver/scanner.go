package driver

import (
	"context"
	"time"

	"github.com/chaz8081/hapticlink/internal/ble"
)

// scanSession is one discovery run, from Search to its terminal outcome.
type scanSession struct {
	id     uint64
	cancel context.CancelFunc
	timer  *time.Timer
}

func (d *Driver) handleSearch() {
	if d.state != StateNone {
		d.scanLog.Warn("search ignored", "state", d.state.String())
		return
	}
	if err := d.checkRadio(); err != nil {
		d.scanLog.Error("cannot search", "error", err)
		return
	}

	id := d.newID()
	ctx, cancel := context.WithCancel(d.ctx)
	s := &scanSession{id: id, cancel: cancel}
	s.timer = time.AfterFunc(d.opts.ScanTimeout, func() {
		d.post(evScanTimeout{scan: id})
	})
	d.scan = s
	d.setState(StateSearching)
	d.scanLog.Info("scan started", "name", d.opts.DeviceName, "timeout", d.opts.ScanTimeout)

	go func() {
		err := d.adapter.Scan(ctx, func(dev ble.Device) {
			d.post(evScanResult{scan: id, device: dev})
		})
		d.post(evScanStopped{scan: id, err: err})
	}()
}

// currentScan reports whether id is the live scan.
func (d *Driver) currentScan(id uint64) bool {
	return d.scan != nil && d.scan.id == id && d.state == StateSearching
}

func (d *Driver) stopScan() {
	d.scan.cancel()
	d.scan.timer.Stop()
	d.scan = nil
}

func (d *Driver) handleScanResult(m evScanResult) {
	if !d.currentScan(m.scan) {
		return
	}
	if m.device.Name == "" {
		return
	}
	if m.device.Name != d.opts.DeviceName {
		d.scanLog.Debug("ignoring peer", "name", m.device.Name, "address", m.device.Address)
		return
	}
	if m.device.Address == "" {
		d.scanLog.Debug("ignoring peer without address", "name", m.device.Name)
		return
	}

	d.stopScan()
	d.scanLog.Info("device found", "address", m.device.Address, "rssi", m.device.RSSI)
	d.notifier.Emit(DeviceFound{Address: m.device.Address})

	if err := d.store.SaveAddress(m.device.Address); err != nil {
		d.scanLog.Error("saving device address", "error", err)
	}
	d.connect(m.device.Address)
}

func (d *Driver) handleScanTimeout(m evScanTimeout) {
	if !d.currentScan(m.scan) {
		return
	}
	d.stopScan()
	d.scanLog.Info("device not found", "name", d.opts.DeviceName)
	d.setState(StateNone)
	d.notifier.Emit(DeviceNotFound{})
}

func (d *Driver) handleScanStopped(m evScanStopped) {
	if m.err == nil || !d.currentScan(m.scan) {
		return
	}
	d.stopScan()
	d.scanLog.Error("scan failed", "error", m.err)
	d.setState(StateNone)
}
