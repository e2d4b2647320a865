package driver

import (
	"sync"

	"github.com/chaz8081/hapticlink/internal/ble"
)

// message is anything processed by the run goroutine: caller commands and
// radio callbacks alike.
type message interface{}

// Caller commands.
type (
	cmdSearch     struct{}
	cmdConnect    struct{ address string }
	cmdDisconnect struct{}
	cmdForget     struct{}
	cmdResume     struct{}
	cmdSetMotor   struct{ motor, intensity uint8 }
)

// Radio callbacks. Each carries the id of the scan or session that produced
// it; stale ids are ignored.
type (
	evScanResult struct {
		scan   uint64
		device ble.Device
	}
	evScanTimeout struct{ scan uint64 }
	evScanStopped struct {
		scan uint64
		err  error
	}
	evLinkUp struct {
		session uint64
		conn    ble.Connection
	}
	evLinkFailed struct {
		session uint64
		err     error
	}
	evLinkDown struct{ session uint64 }
	evServices struct {
		session  uint64
		services []ble.Service
		err      error
	}
	evTypeRead struct {
		session uint64
		value   []byte
		err     error
	}
	evWriteDone struct {
		session uint64
		payload []byte
		err     error
	}
)

// mailbox is an unbounded FIFO so posting never blocks the caller, even
// from inside a listener.
type mailbox struct {
	mu     sync.Mutex
	queue  []message
	signal chan struct{}
}

func (m *mailbox) init() {
	m.signal = make(chan struct{}, 1)
}

func (m *mailbox) put(msg message) {
	m.mu.Lock()
	m.queue = append(m.queue, msg)
	m.mu.Unlock()
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []message {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue
	m.queue = nil
	return q
}
