package mockservice

import (
	"sync"
	"time"
)

// matchSignal wakes every waiter when a request is matched.
type matchSignal struct {
	mu sync.Mutex
	ch chan struct{}
}

func newMatchSignal() *matchSignal {
	return &matchSignal{ch: make(chan struct{})}
}

// Wait blocks until the next Broadcast or until timeout has elapsed.
func (m *matchSignal) Wait(timeout time.Duration) {
	m.mu.Lock()
	ch := m.ch
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
	}
}

func (m *matchSignal) Broadcast() {
	m.mu.Lock()
	defer m.mu.Unlock()
	close(m.ch)
	m.ch = make(chan struct{})
}
