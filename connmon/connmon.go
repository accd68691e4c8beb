// Package connmon implements the connection monitor: a registry
// of SSE/WebSocket connections tracking status transitions, rolling ping
// samples, uptime bookkeeping, and a weighted quality score.
package connmon

import (
	"crypto/rand"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/wanderer-industries/topologyd/errors"
)

// Status mirrors the five-state connection lifecycle shared with the SSE
// client's state machine.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusConnecting:
		return "connecting"
	case StatusReconnecting:
		return "reconnecting"
	case StatusFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

// Type distinguishes the transport a monitored connection uses, since
// quality scoring weights differ (SSE has no heartbeats).
type Type int

const (
	TypeWebSocket Type = iota
	TypeSSE
)

func (t Type) String() string {
	if t == TypeSSE {
		return "sse"
	}
	return "websocket"
}

const maxPingSamples = 10

// DisconnectEvent records one completed outage.
type DisconnectEvent struct {
	At       time.Time
	Duration time.Duration
}

// Connection is the monitor's bookkeeping for one registered connection.
type Connection struct {
	ID               string
	Type             Type
	PID              string
	Status           Status
	ConnectedAt      time.Time
	LastHeartbeat    time.Time
	PingTime         time.Duration
	PingSamples      []time.Duration
	TotalConnected   time.Duration
	TotalDisconnected time.Duration
	DisconnectEvents []DisconnectEvent

	lastTransitionAt time.Time
	lastDisconnectAt time.Time
}

// Monitor is the registry of tracked connections.
type Monitor struct {
	mu    sync.Mutex
	conns map[string]*Connection
	now   func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock injects a clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New creates an empty Monitor.
func New(opts ...Option) *Monitor {
	m := &Monitor{conns: make(map[string]*Connection), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a new connection in StatusDisconnected and returns its id.
func (m *Monitor) Register(typ Type, pid string) string {
	id := newConnID()
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.conns[id] = &Connection{
		ID:               id,
		Type:             typ,
		PID:              pid,
		Status:           StatusDisconnected,
		lastTransitionAt: now,
	}
	return id
}

// Unregister drops a connection from the registry entirely.
func (m *Monitor) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, id)
}

// Get returns a copy of the current bookkeeping for id.
func (m *Monitor) Get(id string) (Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok {
		return Connection{}, errors.Mark(errors.Newf("connmon: unknown connection %q", id), errors.ErrNotFound)
	}
	return *c, nil
}

// All returns a snapshot of every registered connection, sorted by id,
// for introspection surfaces (the admin status feed).
func (m *Monitor) All() []Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Connection, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.conns[id])
	}
	return out
}

func isUp(s Status) bool { return s == StatusConnected }

// Transition moves a connection to a new status, updating uptime
// bookkeeping: leaving StatusConnected accumulates connected time and
// opens a disconnect event; entering StatusConnected closes the open
// disconnect event and accumulates disconnected time. A process dying is
// reported by the caller as a transition to StatusFailed.
func (m *Monitor) Transition(id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok {
		return errors.Mark(errors.Newf("connmon: unknown connection %q", id), errors.ErrNotFound)
	}

	now := m.now()
	wasUp := isUp(c.Status)
	willBeUp := isUp(status)

	switch {
	case wasUp && !willBeUp:
		c.TotalConnected += now.Sub(c.lastTransitionAt)
		c.DisconnectEvents = append(c.DisconnectEvents, DisconnectEvent{At: now})
		c.lastDisconnectAt = now
	case !wasUp && willBeUp:
		if !c.lastDisconnectAt.IsZero() {
			d := now.Sub(c.lastDisconnectAt)
			c.TotalDisconnected += d
			if n := len(c.DisconnectEvents); n > 0 {
				c.DisconnectEvents[n-1].Duration = d
			}
			c.lastDisconnectAt = time.Time{}
		}
		if c.ConnectedAt.IsZero() {
			c.ConnectedAt = now
		}
	}

	c.Status = status
	c.lastTransitionAt = now
	return nil
}

// RecordHeartbeat timestamps the most recent heartbeat for id.
func (m *Monitor) RecordHeartbeat(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok {
		return errors.Mark(errors.Newf("connmon: unknown connection %q", id), errors.ErrNotFound)
	}
	c.LastHeartbeat = m.now()
	return nil
}

// RecordPing appends a ping latency sample, keeping only the last 10.
func (m *Monitor) RecordPing(id string, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok {
		return errors.Mark(errors.Newf("connmon: unknown connection %q", id), errors.ErrNotFound)
	}
	c.PingTime = d
	c.PingSamples = append(c.PingSamples, d)
	if len(c.PingSamples) > maxPingSamples {
		c.PingSamples = c.PingSamples[len(c.PingSamples)-maxPingSamples:]
	}
	return nil
}

// UptimePercent computes total_connected / (total_connected +
// total_disconnected) * 100, rounded to one decimal. A connection with no
// history that is currently connected reports 99.0.
func (c Connection) UptimePercent(now time.Time) float64 {
	connected := c.TotalConnected
	disconnected := c.TotalDisconnected
	if isUp(c.Status) {
		connected += now.Sub(c.lastTransitionAt)
	} else if !c.lastDisconnectAt.IsZero() {
		disconnected += now.Sub(c.lastDisconnectAt)
	}

	total := connected + disconnected
	if total == 0 {
		if isUp(c.Status) {
			return 99.0
		}
		return 0.0
	}
	pct := float64(connected) / float64(total) * 100
	return math.Round(pct*10) / 10
}

// UptimePercent returns id's current uptime percentage.
func (m *Monitor) UptimePercent(id string) (float64, error) {
	c, err := m.Get(id)
	if err != nil {
		return 0, err
	}
	return c.UptimePercent(m.now()), nil
}

func newConnID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "conn_" + base58.Encode(buf)
}
