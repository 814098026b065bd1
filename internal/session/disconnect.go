package session

import (
	"sync"
	"sync/atomic"

	"github.com/erkko68/xarxes/internal/metrics"
)

// DisconnectSignal is a wait-free, set-once broadcast consumed by every
// concurrent task (liveness sender/receiver, data engine, shell) on its
// next blocking-call return.
type DisconnectSignal struct {
	once   sync.Once
	ch     chan struct{}
	raised atomic.Bool
}

// NewDisconnectSignal returns an armed signal ready to be waited on.
func NewDisconnectSignal() *DisconnectSignal {
	return &DisconnectSignal{ch: make(chan struct{})}
}

// Raise fires the signal; idempotent.
func (d *DisconnectSignal) Raise() {
	d.once.Do(func() {
		d.raised.Store(true)
		close(d.ch)
		metrics.IncDisconnects()
	})
}

// Raised reports whether Raise has been called, without blocking.
func (d *DisconnectSignal) Raised() bool { return d.raised.Load() }

// C returns the channel that closes when Raise is called.
func (d *DisconnectSignal) C() <-chan struct{} { return d.ch }
