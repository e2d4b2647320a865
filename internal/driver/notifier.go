package driver

import "sync"

// Notifier holds at most one Listener. Registering replaces the previous
// listener; events emitted while none is registered are dropped.
type Notifier struct {
	mu       sync.Mutex
	listener Listener

	// deliver serializes calls into the listener.
	deliver sync.Mutex
}

// Register installs l as the only listener. A nil l disables delivery.
func (n *Notifier) Register(l Listener) {
	n.mu.Lock()
	n.listener = l
	n.mu.Unlock()
}

// Unregister removes the current listener.
func (n *Notifier) Unregister() {
	n.Register(nil)
}

// Emit delivers ev to the current listener, if any.
func (n *Notifier) Emit(ev Event) {
	n.mu.Lock()
	l := n.listener
	n.mu.Unlock()
	if l == nil {
		return
	}

	n.deliver.Lock()
	defer n.deliver.Unlock()
	l(ev)
}
