package registry

import (
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-switch/internal/infrastructure/mqtt"
)

var testTopics = mqtt.Topics{Category: "switch", ClientID: "client_id"}

func TestDefaultBindings(t *testing.T) {
	reg, err := New(DefaultBindings(testTopics)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		topic     string
		feature   string
		state     string
		command   string
		reply     string
		wantValue string
	}{
		{"switch/client_id/cmnd/state", FeaturePower, "switch/client_id/status/state", "you on?", "Yes", "on"},
		{"switch/client_id/cmnd/rgb", FeatureColor, "switch/client_id/status/rgd", "Be red pls", "Red", "red"},
	}

	for _, tt := range tests {
		t.Run(tt.feature, func(t *testing.T) {
			b, ok := reg.Lookup(tt.topic)
			if !ok {
				t.Fatalf("Lookup(%q) not found", tt.topic)
			}
			if b.Feature != tt.feature {
				t.Errorf("Feature = %q, want %q", b.Feature, tt.feature)
			}
			if b.StateTopic != tt.state {
				t.Errorf("StateTopic = %q, want %q", b.StateTopic, tt.state)
			}
			if len(b.Phrases) != 1 {
				t.Fatalf("len(Phrases) = %d, want 1", len(b.Phrases))
			}
			p := b.Phrases[0]
			if p.Command != tt.command || p.Reply != tt.reply || p.Value != tt.wantValue {
				t.Errorf("Phrase = %+v, want {%q %q %q}", p, tt.command, tt.reply, tt.wantValue)
			}
		})
	}
}

func TestRegistry_CommandTopicsOrder(t *testing.T) {
	reg, err := New(DefaultBindings(testTopics)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got := reg.CommandTopics()
	want := []string{"switch/client_id/cmnd/state", "switch/client_id/cmnd/rgb"}
	if len(got) != len(want) {
		t.Fatalf("CommandTopics() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("CommandTopics()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistry_LookupIsExact(t *testing.T) {
	reg, err := New(DefaultBindings(testTopics)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, topic := range []string{
		"switch/client_id/cmnd/State",
		"switch/client_id/cmnd/state/",
		"switch/client_id/cmnd/+",
		"switch/client_id/status/state",
		"",
	} {
		if _, ok := reg.Lookup(topic); ok {
			t.Errorf("Lookup(%q) matched, want no match", topic)
		}
	}
}

func TestNew_Rejects(t *testing.T) {
	valid := Binding{Feature: "power", CommandTopic: "a/cmnd/state", StateTopic: "a/status/state"}

	tests := []struct {
		name     string
		bindings []Binding
		wantErr  error
	}{
		{
			name:     "duplicate command topic",
			bindings: []Binding{valid, {Feature: "other", CommandTopic: valid.CommandTopic, StateTopic: "x"}},
			wantErr:  ErrDuplicateTopic,
		},
		{
			name:     "duplicate feature",
			bindings: []Binding{valid, {Feature: "power", CommandTopic: "a/cmnd/other", StateTopic: "x"}},
			wantErr:  ErrDuplicateFeature,
		},
		{
			name:     "empty feature",
			bindings: []Binding{{CommandTopic: "a", StateTopic: "b"}},
			wantErr:  ErrInvalidBinding,
		},
		{
			name:     "empty command topic",
			bindings: []Binding{{Feature: "f", StateTopic: "b"}},
			wantErr:  ErrInvalidBinding,
		},
		{
			name:     "empty state topic",
			bindings: []Binding{{Feature: "f", CommandTopic: "a"}},
			wantErr:  ErrInvalidBinding,
		},
		{
			name:     "single-level wildcard",
			bindings: []Binding{{Feature: "f", CommandTopic: "a/+/b", StateTopic: "b"}},
			wantErr:  ErrInvalidBinding,
		},
		{
			name:     "multi-level wildcard",
			bindings: []Binding{{Feature: "f", CommandTopic: "a/#", StateTopic: "b"}},
			wantErr:  ErrInvalidBinding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.bindings...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_BindingsAreCopies(t *testing.T) {
	phrases := []Phrase{{Command: "go", Reply: "ok", Value: "on"}}
	reg, err := New(Binding{Feature: "f", CommandTopic: "a", StateTopic: "b", Phrases: phrases})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	phrases[0].Command = "changed"
	b, _ := reg.Lookup("a")
	if b.Phrases[0].Command != "go" {
		t.Errorf("Phrases[0].Command = %q, want %q", b.Phrases[0].Command, "go")
	}

	all := reg.Bindings()
	all[0].Feature = "mutated"
	if reg.Bindings()[0].Feature != "f" {
		t.Error("Bindings() exposed internal slice")
	}
}

func TestEmptyRegistry(t *testing.T) {
	reg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if n := len(reg.CommandTopics()); n != 0 {
		t.Errorf("len(CommandTopics()) = %d, want 0", n)
	}
}
