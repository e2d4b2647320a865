//go:build linux

package ble

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	bluezBusName     = "org.bluez"
	bluezAdapterPath = "/org/bluez/hci0"
	bluezAdapterIfc  = "org.bluez.Adapter1"
	dbusPropsIfc     = "org.freedesktop.DBus.Properties"
)

// BlueZRadio queries the Powered property of a BlueZ adapter over the
// system bus.
type BlueZRadio struct {
	path dbus.ObjectPath
	bus  func() (*dbus.Conn, error)
}

// NewBlueZRadio returns a Radio for the adapter at path, or hci0 when empty.
func NewBlueZRadio(path string) *BlueZRadio {
	if path == "" {
		path = bluezAdapterPath
	}
	return &BlueZRadio{path: dbus.ObjectPath(path), bus: dbus.SystemBus}
}

// Powered reports whether the adapter is switched on. A missing adapter or
// BlueZ daemon is reported as an error.
func (r *BlueZRadio) Powered() (bool, error) {
	conn, err := r.bus()
	if err != nil {
		return false, fmt.Errorf("ble: connect to system bus: %w", err)
	}
	var v dbus.Variant
	obj := conn.Object(bluezBusName, r.path)
	if err := obj.Call(dbusPropsIfc+".Get", 0, bluezAdapterIfc, "Powered").Store(&v); err != nil {
		return false, fmt.Errorf("ble: read %s Powered: %w", r.path, err)
	}
	powered, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("ble: property Powered is not bool")
	}
	return powered, nil
}

// DefaultRadio returns the platform radio probe.
func DefaultRadio() Radio {
	return NewBlueZRadio("")
}
