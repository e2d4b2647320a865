// Package ipc carries driver operations and events between the daemon and
// CLI clients as newline-delimited JSON over a unix socket.
package ipc

// Commands understood by the daemon.
const (
	CmdState      = "state"
	CmdSearch     = "search"
	CmdConnect    = "connect"
	CmdDisconnect = "disconnect"
	CmdForget     = "forget"
	CmdSetMotor   = "set_motor"
	CmdSubscribe  = "subscribe"
)

// Request is sent from the CLI client to the daemon.
type Request struct {
	Command   string `json:"command"`
	Address   string `json:"address,omitempty"`   // connect; empty uses the saved address
	Motor     string `json:"motor,omitempty"`     // set_motor: location name or numeric id
	Intensity *int   `json:"intensity,omitempty"` // set_motor
}

// Response is sent from the daemon back to the CLI client. After a
// subscribe response the daemon streams eventlog.Record values.
type Response struct {
	State      string `json:"state,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
	Address    string `json:"address,omitempty"`
	MotorID    *int   `json:"motor_id,omitempty"`
	Error      string `json:"error,omitempty"`
}
