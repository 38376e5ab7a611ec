package command

// Actuator drives the physical output of a feature (relay, LED).
type Actuator interface {
	Apply(feature, value string) error
}

type nopActuator struct{}

func (nopActuator) Apply(string, string) error { return nil }

// LogActuator records state changes in the log instead of driving hardware.
type LogActuator struct {
	logger Logger
}

// NewLogActuator returns an actuator that logs each change at info level.
func NewLogActuator(logger Logger) *LogActuator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogActuator{logger: logger}
}

// Apply logs the change. It never fails.
func (a *LogActuator) Apply(feature, value string) error {
	a.logger.Info("actuate", "feature", feature, "value", value)
	return nil
}
