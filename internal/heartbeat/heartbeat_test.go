package heartbeat

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeMetrics struct {
	mu      sync.Mutex
	samples int
	heap    uint64
}

func (m *fakeMetrics) WriteHeartbeat(_ time.Duration, heapBytes uint64, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples++
	m.heap = heapBytes
}

func (m *fakeMetrics) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samples
}

func TestHeartbeat_Tick(t *testing.T) {
	m := &fakeMetrics{}
	h := New(time.Hour, m)

	h.tick()
	h.tick()

	if h.beatCount() != 2 || m.count() != 2 {
		t.Errorf("beatCount() = %d, samples = %d, want 2", h.beatCount(), m.count())
	}
	if m.heap == 0 {
		t.Error("heap sample = 0")
	}
}

func TestHeartbeat_SuspendDefersBeat(t *testing.T) {
	h := New(time.Hour, nil)

	h.Suspend()
	h.tick()
	h.tick()
	if h.beatCount() != 0 {
		t.Fatalf("beatCount() = %d while suspended, want 0", h.beatCount())
	}

	h.Resume()
	select {
	case <-h.resumed:
	default:
		t.Fatal("Resume() did not signal the deferred beat")
	}
	h.runPending()

	if h.beatCount() != 1 {
		t.Errorf("beatCount() = %d after resume, want 1 (deferred beats coalesce)", h.beatCount())
	}
}

func TestHeartbeat_NestedSuspend(t *testing.T) {
	h := New(time.Hour, nil)

	h.Suspend()
	h.Suspend()
	h.tick()
	h.Resume()
	h.runPending()
	if h.beatCount() != 0 {
		t.Errorf("beatCount() = %d with one suspend outstanding, want 0", h.beatCount())
	}

	h.Resume()
	h.runPending()
	if h.beatCount() != 1 {
		t.Errorf("beatCount() = %d, want 1", h.beatCount())
	}
}

func TestHeartbeat_ResumeWithoutPending(t *testing.T) {
	h := New(time.Hour, nil)

	h.Suspend()
	h.Resume()
	h.Resume() // unbalanced resume is harmless

	select {
	case <-h.resumed:
		t.Error("Resume() signalled with nothing deferred")
	default:
	}
}

func TestHeartbeat_StartStop(t *testing.T) {
	m := &fakeMetrics{}
	h := New(5*time.Millisecond, m)

	h.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for m.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	h.Stop()

	if m.count() < 2 {
		t.Fatalf("samples = %d, want at least 2", m.count())
	}

	after := m.count()
	time.Sleep(20 * time.Millisecond)
	if m.count() != after {
		t.Error("heartbeat still running after Stop()")
	}
}

func TestHeartbeat_StopWithoutStart(t *testing.T) {
	New(time.Second, nil).Stop()
}
