package registry

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-switch/internal/infrastructure/mqtt"
)

// Feature names of the default bindings.
const (
	FeaturePower = "power"
	FeatureColor = "color"
)

// Phrase is one recognised command and what it does.
type Phrase struct {
	// Command is the exact payload text that triggers the phrase.
	Command string

	// Reply is the payload published on the state topic.
	Reply string

	// Value is the state the feature takes on a match.
	Value string
}

// Binding ties a feature to its command and state topics.
type Binding struct {
	Feature      string
	CommandTopic string
	StateTopic   string

	// Phrases are tried in order; the first exact match wins.
	Phrases []Phrase
}

func (b Binding) validate() error {
	switch {
	case b.Feature == "":
		return fmt.Errorf("%w: feature is required", ErrInvalidBinding)
	case b.CommandTopic == "":
		return fmt.Errorf("%w: %s: command topic is required", ErrInvalidBinding, b.Feature)
	case b.StateTopic == "":
		return fmt.Errorf("%w: %s: state topic is required", ErrInvalidBinding, b.Feature)
	case strings.ContainsAny(b.CommandTopic, "+#"):
		return fmt.Errorf("%w: %s: wildcard in command topic %q", ErrInvalidBinding, b.Feature, b.CommandTopic)
	case strings.ContainsAny(b.StateTopic, "+#"):
		return fmt.Errorf("%w: %s: wildcard in state topic %q", ErrInvalidBinding, b.Feature, b.StateTopic)
	}
	return nil
}

// Registry is an immutable set of bindings keyed by command topic.
type Registry struct {
	bindings []Binding
	byTopic  map[string]int
}

// New validates bindings and builds the registry.
//
// Parameters:
//   - bindings: Feature bindings in registration order
//
// Returns:
//   - *Registry: The lookup table
//   - error: ErrInvalidBinding, ErrDuplicateTopic or ErrDuplicateFeature
func New(bindings ...Binding) (*Registry, error) {
	r := &Registry{
		bindings: make([]Binding, 0, len(bindings)),
		byTopic:  make(map[string]int, len(bindings)),
	}
	features := make(map[string]struct{}, len(bindings))

	for _, b := range bindings {
		if err := b.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byTopic[b.CommandTopic]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTopic, b.CommandTopic)
		}
		if _, dup := features[b.Feature]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFeature, b.Feature)
		}

		b.Phrases = append([]Phrase(nil), b.Phrases...)
		r.byTopic[b.CommandTopic] = len(r.bindings)
		features[b.Feature] = struct{}{}
		r.bindings = append(r.bindings, b)
	}

	return r, nil
}

// Lookup finds the binding for an exact command topic.
func (r *Registry) Lookup(topic string) (Binding, bool) {
	i, ok := r.byTopic[topic]
	if !ok {
		return Binding{}, false
	}
	return r.bindings[i], true
}

// Bindings returns every binding in registration order.
func (r *Registry) Bindings() []Binding {
	return append([]Binding(nil), r.bindings...)
}

// CommandTopics returns the topics to subscribe to, in registration order.
func (r *Registry) CommandTopics() []string {
	out := make([]string, len(r.bindings))
	for i, b := range r.bindings {
		out[i] = b.CommandTopic
	}
	return out
}

// DefaultBindings returns the power and colour bindings of a switch.
//
// The colour state topic is "rgd", not "rgb". Existing dashboards listen
// there.
func DefaultBindings(topics mqtt.Topics) []Binding {
	return []Binding{
		{
			Feature:      FeaturePower,
			CommandTopic: topics.Command("state"),
			StateTopic:   topics.Status("state"),
			Phrases:      []Phrase{{Command: "you on?", Reply: "Yes", Value: "on"}},
		},
		{
			Feature:      FeatureColor,
			CommandTopic: topics.Command("rgb"),
			StateTopic:   topics.Status("rgd"),
			Phrases:      []Phrase{{Command: "Be red pls", Reply: "Red", Value: "red"}},
		},
	}
}
