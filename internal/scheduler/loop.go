package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-switch/internal/ota"
)

// Ticker advances the broker session by one step. *session.Manager satisfies it.
type Ticker interface {
	Tick(ctx context.Context)
	IsConnected() bool
}

// Updater services the update transport without blocking. *ota.Updater satisfies it.
type Updater interface {
	Service() error
}

// Logger defines the logging interface used by the Loop.
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

// Options configures a Loop.
type Options struct {
	// Updater is serviced first in every iteration. Nil skips the update check.
	Updater Updater

	// Suspend lists tasks paused while the updater runs.
	Suspend []Suspender

	// Idle pauses between iterations. Zero runs iterations back to back.
	Idle time.Duration

	Logger Logger
}

// Loop is the cooperative scheduler.
type Loop struct {
	session Ticker
	updater Updater
	suspend []Suspender
	idle    time.Duration
	logger  Logger

	// online is the session state seen after the previous tick.
	online bool
}

// New creates a loop around a session.
func New(session Ticker, opts Options) *Loop {
	l := &Loop{
		session: session,
		updater: opts.Updater,
		suspend: append([]Suspender(nil), opts.Suspend...),
		idle:    opts.Idle,
		logger:  opts.Logger,
	}
	if l.logger == nil {
		l.logger = noopLogger{}
	}
	return l
}

// Step runs one iteration: the update check, then one session tick.
//
// Returns:
//   - error: ota.ErrRestartRequired when a new image was installed; other
//     update errors are logged and the session is still ticked
func (l *Loop) Step(ctx context.Context) error {
	if l.updater != nil {
		err := Critical(l.updater.Service, l.suspend...)
		if errors.Is(err, ota.ErrRestartRequired) {
			return err
		}
		if err != nil {
			l.logger.Error("update check failed", "error", err)
		}
	}

	l.session.Tick(ctx)
	l.watchSession()
	return nil
}

// watchSession logs each change of the session's connection state.
func (l *Loop) watchSession() {
	online := l.session.IsConnected()
	if online == l.online {
		return
	}
	l.online = online
	if online {
		l.logger.Info("broker session up")
	} else {
		l.logger.Warn("broker session down")
	}
}

// Run steps until ctx is cancelled or a restart is required.
//
// Returns:
//   - nil: ctx was cancelled
//   - error: ota.ErrRestartRequired
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("scheduler loop started", "idle", l.idle, "suspend", len(l.suspend))

	for ctx.Err() == nil {
		if err := l.Step(ctx); err != nil {
			return err
		}
		if l.idle > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(l.idle):
			}
		}
	}

	l.logger.Info("scheduler loop stopped")
	return nil
}
