//go:build !linux

package ble

// DefaultRadio returns the platform radio probe. Outside Linux there is no
// power query; Enable failures surface unsupported radios instead.
func DefaultRadio() Radio {
	return AlwaysOn{}
}
