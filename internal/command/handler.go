package command

import (
	"time"

	"github.com/nerrad567/gray-logic-switch/internal/registry"
)

// Logger defines the logging interface used by handlers and actuators.
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

// Report is the reply a handler wants published after a state change.
type Report struct {
	Feature string
	Topic   string
	Payload string

	// Value is the feature state after the change.
	Value string
}

// FeatureState is the slice of device state owned by one handler.
// A zero UpdatedAt means the feature has not been set since start-up.
type FeatureState struct {
	Feature   string
	Value     string
	UpdatedAt time.Time
}

// Handler maps command payloads for one feature to state changes.
type Handler interface {
	// Feature returns the feature name this handler owns.
	Feature() string

	// Handle matches payload against the recognised phrases.
	// It returns false, and changes nothing, when no phrase matches.
	Handle(payload string) (Report, bool)

	// State returns the current feature state.
	State() FeatureState

	// Restore sets the state from a persisted value without actuating
	// or reporting.
	Restore(value string)
}

// PhraseHandler recognises a fixed, ordered list of literal phrases.
type PhraseHandler struct {
	binding  registry.Binding
	actuator Actuator
	state    FeatureState
	logger   Logger
	now      func() time.Time
}

// New creates a handler for a binding.
//
// Parameters:
//   - binding: The feature binding with its phrases
//   - actuator: Drives the physical output; nil disables actuation
//
// Returns:
//   - *PhraseHandler: Handler with an empty state
func New(binding registry.Binding, actuator Actuator) *PhraseHandler {
	if actuator == nil {
		actuator = nopActuator{}
	}
	return &PhraseHandler{
		binding:  binding,
		actuator: actuator,
		state:    FeatureState{Feature: binding.Feature},
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the handler.
func (h *PhraseHandler) SetLogger(logger Logger) {
	h.logger = logger
}

// Feature returns the bound feature name.
func (h *PhraseHandler) Feature() string {
	return h.binding.Feature
}

// Handle compares payload byte for byte with each phrase in order; the
// first match wins. Actuator errors are logged and do not stop the report.
func (h *PhraseHandler) Handle(payload string) (Report, bool) {
	for _, p := range h.binding.Phrases {
		if payload != p.Command {
			continue
		}

		h.state.Value = p.Value
		h.state.UpdatedAt = h.now()

		if err := h.actuator.Apply(h.binding.Feature, p.Value); err != nil {
			h.logger.Error("actuator failed",
				"feature", h.binding.Feature,
				"value", p.Value,
				"error", err,
			)
		}

		return Report{
			Feature: h.binding.Feature,
			Topic:   h.binding.StateTopic,
			Payload: p.Reply,
			Value:   p.Value,
		}, true
	}

	return Report{}, false
}

// State returns a copy of the feature state.
func (h *PhraseHandler) State() FeatureState {
	return h.state
}

// Restore sets the value without calling the actuator.
func (h *PhraseHandler) Restore(value string) {
	h.state.Value = value
	h.state.UpdatedAt = h.now()
}

// Snapshot collects the state of every handler, keyed by feature.
func Snapshot(handlers ...Handler) map[string]FeatureState {
	out := make(map[string]FeatureState, len(handlers))
	for _, h := range handlers {
		out[h.Feature()] = h.State()
	}
	return out
}
