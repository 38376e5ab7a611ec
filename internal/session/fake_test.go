package session

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-switch/internal/infrastructure/mqtt"
)

// fakeTransport scripts broker behaviour and records every call.
type fakeTransport struct {
	connectErrs   []error // consumed one per Connect; nil entries succeed
	subscribeErrs map[string]error
	publishErr    error
	pollErr       error
	queue         []mqtt.Message

	calls      []string
	subscribed []string
	published  []mqtt.Message
	connected  bool
}

func (f *fakeTransport) Connect(context.Context) error {
	f.calls = append(f.calls, "connect")
	var err error
	if len(f.connectErrs) > 0 {
		err, f.connectErrs = f.connectErrs[0], f.connectErrs[1:]
	}
	f.connected = err == nil
	if err == nil {
		f.subscribed = nil
		f.pollErr = nil
	}
	return err
}

func (f *fakeTransport) Subscribe(topic string, _ byte) error {
	f.calls = append(f.calls, "subscribe "+topic)
	if err := f.subscribeErrs[topic]; err != nil {
		return err
	}
	f.subscribed = append(f.subscribed, topic)
	return nil
}

func (f *fakeTransport) Publish(topic string, _ byte, _ bool, payload []byte) error {
	f.calls = append(f.calls, "publish "+topic)
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, mqtt.Message{Topic: topic, Payload: payload})
	return nil
}

func (f *fakeTransport) Poll() (mqtt.Message, bool, error) {
	f.calls = append(f.calls, "poll")
	if f.pollErr != nil {
		return mqtt.Message{}, false, f.pollErr
	}
	if len(f.queue) == 0 {
		return mqtt.Message{}, false, nil
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, true, nil
}

func (f *fakeTransport) Close() {
	f.calls = append(f.calls, "close")
	f.connected = false
}

func (f *fakeTransport) deliver(topic, payload string) {
	f.queue = append(f.queue, mqtt.Message{Topic: topic, Payload: []byte(payload)})
}

func (f *fakeTransport) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

// fakeDispatcher records routed messages and can publish a reply through
// the manager, the way the router does.
type fakeDispatcher struct {
	manager *Manager
	routed  []string
	reply   map[string]string // inbound topic -> reply topic
}

func (d *fakeDispatcher) Route(_ context.Context, topic string, payload []byte) bool {
	d.routed = append(d.routed, topic+"="+string(payload))
	if to, ok := d.reply[topic]; ok {
		d.manager.Publish(to, "ack "+string(payload))
	}
	return true
}

type fakeMetrics struct {
	attempts []error
	publish  []bool
}

func (m *fakeMetrics) WriteConnectAttempt(_ int, err error) { m.attempts = append(m.attempts, err) }
func (m *fakeMetrics) WritePublish(_ string, ok bool)       { m.publish = append(m.publish, ok) }

func failures(n int) []error {
	errs := make([]error, n)
	for i := range errs {
		errs[i] = fmt.Errorf("%w: attempt %d", mqtt.ErrConnectionFailed, i+1)
	}
	return errs
}
