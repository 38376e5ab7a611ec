// Package heartbeat reports process health on a fixed interval.
//
// The heartbeat runs on its own goroutine and competes with the scheduler
// loop. It can be suspended while the update check runs; a beat that falls
// due while suspended is deferred until Resume, not lost.
package heartbeat

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// Metrics receives heartbeat samples. *influxdb.Client satisfies it.
type Metrics interface {
	WriteHeartbeat(uptime time.Duration, heapBytes uint64, goroutines int)
}

// Logger defines the logging interface used by the heartbeat.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Heartbeat is a gated periodic task.
type Heartbeat struct {
	interval time.Duration
	metrics  Metrics
	logger   Logger
	started  time.Time

	// mu is held for the whole of a beat, so Suspend waits for one in flight.
	mu        sync.Mutex
	suspended int
	pending   bool
	beats     int

	resumed chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped heartbeat. metrics may be nil.
func New(interval time.Duration, metrics Metrics) *Heartbeat {
	return &Heartbeat{
		interval: interval,
		metrics:  metrics,
		logger:   noopLogger{},
		started:  time.Now(),
		resumed:  make(chan struct{}, 1),
	}
}

// SetLogger sets the logger for the heartbeat.
func (h *Heartbeat) SetLogger(logger Logger) {
	h.logger = logger
}

// Start runs the heartbeat until ctx is cancelled or Stop is called.
func (h *Heartbeat) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})

	go func() {
		defer close(h.done)

		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.tick()
			case <-h.resumed:
				h.runPending()
			}
		}
	}()
}

// Stop ends the goroutine and waits for it.
func (h *Heartbeat) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done
	h.logger.Info("heartbeat stopped", "beats", h.beatCount())
}

// Suspend holds back beats until the matching Resume.
// Calls nest; it waits for a beat already in progress.
func (h *Heartbeat) Suspend() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.suspended++
}

// Resume releases one Suspend and runs a deferred beat once none remain.
func (h *Heartbeat) Resume() {
	h.mu.Lock()
	if h.suspended > 0 {
		h.suspended--
	}
	wake := h.suspended == 0 && h.pending
	h.mu.Unlock()

	if wake {
		select {
		case h.resumed <- struct{}{}:
		default:
		}
	}
}

// beatCount returns the number of completed beats.
func (h *Heartbeat) beatCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.beats
}

func (h *Heartbeat) tick() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.suspended > 0 {
		h.pending = true
		return
	}
	h.beat()
}

func (h *Heartbeat) runPending() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.suspended > 0 || !h.pending {
		return
	}
	h.beat()
}

// beat samples the runtime. Callers hold mu.
func (h *Heartbeat) beat() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	uptime := time.Since(h.started)
	goroutines := runtime.NumGoroutine()

	if h.metrics != nil {
		h.metrics.WriteHeartbeat(uptime, mem.HeapAlloc, goroutines)
	}
	h.logger.Debug("heartbeat",
		"uptime", uptime.Round(time.Second),
		"heap_bytes", mem.HeapAlloc,
		"goroutines", goroutines,
	)

	h.pending = false
	h.beats++
}
