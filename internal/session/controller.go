// Package session holds the controller's mutex-guarded shared state: its
// protocol Status, the ServerBinding established by a successful
// subscription, the Elements device table, and the subscription attempt
// counter. A single *Controller is passed by reference to every
// concurrent task (subscription engine, liveness sender/receiver, data
// engine, interactive shell).
package session

import (
	"log/slog"
	"sync"

	"github.com/erkko68/xarxes/internal/identity"
	"github.com/erkko68/xarxes/internal/logging"
	"github.com/erkko68/xarxes/internal/metrics"
)

// Controller is the single owned, shared controller record.
type Controller struct {
	mu sync.RWMutex

	Identity identity.Identity
	Elements *identity.Elements

	status       Status
	binding      *ServerBinding
	subsAttempts int

	Logger *slog.Logger
}

// New builds a Controller in the DISCONNECTED state.
func New(id identity.Identity, elements *identity.Elements) *Controller {
	return &Controller{
		Identity: id,
		Elements: elements,
		status:   Disconnected,
		Logger:   logging.L(),
	}
}

// Status returns the current protocol state.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// SetStatus transitions the controller to s, logging only on change.
func (c *Controller) SetStatus(s Status) {
	c.mu.Lock()
	changed := c.status != s
	c.status = s
	if !s.HasBinding() {
		c.binding = nil
	}
	c.mu.Unlock()
	if changed {
		c.Logger.Info("controller_status", "status", s.String())
		metrics.SetStatus(s.String())
	}
}

// Binding returns a copy of the current server binding, or nil if none is
// active. SetStatus clears the binding on any move to a status that does
// not carry one; SetBinding installs a binding whatever the current status.
func (c *Controller) Binding() *ServerBinding {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.binding == nil {
		return nil
	}
	b := *c.binding
	return &b
}

// SetBinding installs or replaces the active binding.
func (c *Controller) SetBinding(b ServerBinding) {
	c.mu.Lock()
	c.binding = &b
	c.mu.Unlock()
}

// UpdateBinding mutates the current binding in place via fn (used by the
// subscription engine to add ServerTCPPort on INFO_ACK). No-op if no
// binding is active.
func (c *Controller) UpdateBinding(fn func(*ServerBinding)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.binding == nil {
		return
	}
	fn(c.binding)
}

// SubsAttempts returns the current monotone attempt counter.
func (c *Controller) SubsAttempts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subsAttempts
}

// IncSubsAttempts increments the attempt counter and returns the new value.
func (c *Controller) IncSubsAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subsAttempts++
	return c.subsAttempts
}

// ResetSubsAttempts resets the counter to 0; called only after a
// well-credentialed HELLO confirms the subscription remains live,
// preventing infinite retry while the server is responsive but
// periodically drops packets.
func (c *Controller) ResetSubsAttempts() {
	c.mu.Lock()
	c.subsAttempts = 0
	c.mu.Unlock()
}
