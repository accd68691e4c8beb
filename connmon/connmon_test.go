package connmon

import (
	"sort"
	"testing"
	"time"
)

type mockClock struct{ t time.Time }

func (c *mockClock) now() time.Time  { return c.t }
func (c *mockClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// Test Case 1: a fresh, currently-connected connection with no history
// reports the 99.0% default uptime.
func TestUptimePercent_NewConnectionDefault(t *testing.T) {
	clock := &mockClock{t: time.Now()}
	m := New(WithClock(clock.now))

	id := m.Register(TypeSSE, "pid-1")
	if err := m.Transition(id, StatusConnected); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pct, err := m.UptimePercent(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pct != 99.0 {
		t.Errorf("uptime = %v, want 99.0", pct)
	}
}

// Test Case 2: disconnect bookkeeping accumulates connected/disconnected
// durations and closes the open disconnect event on reconnect.
func TestTransition_AccumulatesUptimeAndDisconnectEvents(t *testing.T) {
	clock := &mockClock{t: time.Now()}
	m := New(WithClock(clock.now))

	id := m.Register(TypeWebSocket, "pid-1")
	mustTransition(t, m, id, StatusConnected)
	clock.advance(10 * time.Second)
	mustTransition(t, m, id, StatusDisconnected)
	clock.advance(5 * time.Second)
	mustTransition(t, m, id, StatusConnected)

	conn, err := m.Get(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.TotalConnected != 10*time.Second {
		t.Errorf("total connected = %v, want 10s", conn.TotalConnected)
	}
	if conn.TotalDisconnected != 5*time.Second {
		t.Errorf("total disconnected = %v, want 5s", conn.TotalDisconnected)
	}
	if len(conn.DisconnectEvents) != 1 || conn.DisconnectEvents[0].Duration != 5*time.Second {
		t.Errorf("disconnect events = %+v, want one 5s event", conn.DisconnectEvents)
	}

	pct, _ := m.UptimePercent(id)
	want := float64(10) / float64(15) * 100
	if diff := pct - roundTo1(want); diff > 0.01 || diff < -0.01 {
		t.Errorf("uptime = %v, want ~%v", pct, roundTo1(want))
	}
}

// Test Case 3: ping samples roll over at 10 entries.
func TestRecordPing_RollingWindow(t *testing.T) {
	m := New()
	id := m.Register(TypeWebSocket, "pid-1")
	for i := 0; i < 15; i++ {
		if err := m.RecordPing(id, time.Duration(i)*time.Millisecond); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	conn, _ := m.Get(id)
	if len(conn.PingSamples) != maxPingSamples {
		t.Fatalf("ping samples = %d, want %d", len(conn.PingSamples), maxPingSamples)
	}
	if conn.PingSamples[0] != 5*time.Millisecond {
		t.Errorf("oldest retained sample = %v, want 5ms (samples 0-4 should have rolled off)", conn.PingSamples[0])
	}
}

// Test Case 4: quality score weighting differs between SSE (no heartbeat
// axis) and WebSocket.
func TestQualityScore_WeightsDifferByType(t *testing.T) {
	clock := &mockClock{t: time.Now()}
	m := New(WithClock(clock.now))

	wsID := m.Register(TypeWebSocket, "ws")
	mustTransition(t, m, wsID, StatusConnected)
	sseID := m.Register(TypeSSE, "sse")
	mustTransition(t, m, sseID, StatusConnected)

	clock.advance(time.Hour)

	wsScore, wsCat, err := m.QualityScore(wsID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sseScore, sseCat, err := m.QualityScore(sseID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if wsCat != CategoryExcellent || sseCat != CategoryExcellent {
		t.Errorf("categories = (%v, %v), want both excellent for a healthy fresh connection", wsCat, sseCat)
	}
	_ = wsScore
	_ = sseScore
}

// Test Case 5: All reports every registered connection, sorted by id,
// regardless of registration order.
func TestAll_SortedSnapshot(t *testing.T) {
	m := New()
	idB := m.Register(TypeWebSocket, "pid-b")
	idA := m.Register(TypeSSE, "pid-a")
	mustTransition(t, m, idA, StatusConnected)

	all := m.All()
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2", len(all))
	}

	var ids []string
	for _, c := range all {
		ids = append(ids, c.ID)
	}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("ids = %v, want sorted", ids)
	}

	_ = idB
	for _, c := range all {
		if c.ID == idA && c.Status != StatusConnected {
			t.Errorf("connection %s status = %v, want StatusConnected", idA, c.Status)
		}
	}
}

func mustTransition(t *testing.T, m *Monitor, id string, status Status) {
	t.Helper()
	if err := m.Transition(id, status); err != nil {
		t.Fatalf("transition to %v: unexpected error: %v", status, err)
	}
}

func roundTo1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
