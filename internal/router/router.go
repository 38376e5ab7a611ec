package router

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-switch/internal/command"
	"github.com/nerrad567/gray-logic-switch/internal/registry"
)

// Logger defines the logging interface used by the Router.
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

// Publisher sends a report. It reports success and never retries.
type Publisher interface {
	Publish(topic, payload string) bool
}

// Recorder keeps a history of reports.
type Recorder interface {
	Record(ctx context.Context, report command.Report, published bool) error
}

// Router maps command topics to handlers.
type Router struct {
	registry *registry.Registry
	handlers map[string]command.Handler // keyed by feature
	pub      Publisher
	recorder Recorder
	logger   Logger
}

// New pairs every binding in reg with the handler owning its feature.
//
// Parameters:
//   - reg: Validated topic registry
//   - pub: Receives reports; usually the session manager
//   - handlers: One handler per binding
//
// Returns:
//   - *Router: Ready to route
//   - error: ErrMissingHandler, ErrUnboundHandler or ErrDuplicateHandler
func New(reg *registry.Registry, pub Publisher, handlers ...command.Handler) (*Router, error) {
	byFeature := make(map[string]command.Handler, len(handlers))
	for _, h := range handlers {
		if _, dup := byFeature[h.Feature()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHandler, h.Feature())
		}
		byFeature[h.Feature()] = h
	}

	bound := make(map[string]struct{}, len(byFeature))
	for _, b := range reg.Bindings() {
		if _, ok := byFeature[b.Feature]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingHandler, b.Feature)
		}
		bound[b.Feature] = struct{}{}
	}
	for feature := range byFeature {
		if _, ok := bound[feature]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnboundHandler, feature)
		}
	}

	return &Router{
		registry: reg,
		handlers: byFeature,
		pub:      pub,
		logger:   noopLogger{},
	}, nil
}

// SetLogger sets the logger for the router.
func (r *Router) SetLogger(logger Logger) {
	r.logger = logger
}

// SetRecorder sets where reports are journalled. Nil disables recording.
func (r *Router) SetRecorder(recorder Recorder) {
	r.recorder = recorder
}

// Route dispatches one inbound message.
//
// It returns true when the topic is bound, whether or not the payload
// matched a phrase. Unbound topics are dropped with a debug record.
func (r *Router) Route(ctx context.Context, topic string, payload []byte) bool {
	text := string(payload)

	binding, ok := r.registry.Lookup(topic)
	if !ok {
		r.logger.Debug("dropping message on unbound topic", "topic", topic, "bytes", len(payload))
		return false
	}

	handler := r.handlers[binding.Feature]
	report, ok := handler.Handle(text)
	if !ok {
		r.logger.Debug("ignoring unrecognised command", "feature", binding.Feature, "payload", text)
		return true
	}

	published := r.pub.Publish(report.Topic, report.Payload)

	if r.recorder != nil {
		if err := r.recorder.Record(ctx, report, published); err != nil {
			r.logger.Warn("journal write failed", "feature", report.Feature, "error", err)
		}
	}

	return true
}
