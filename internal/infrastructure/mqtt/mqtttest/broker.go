// Package mqtttest runs an in-process MQTT broker for tests.
package mqtttest

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

// Broker is a mochi broker listening on a loopback port.
type Broker struct {
	Server *mochi.Server
	Host   string
	Port   int
}

// Start launches a broker that accepts every client and stops it on test cleanup.
// Tests using it are skipped under -short.
func Start(t *testing.T) *Broker {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping broker test in short mode")
	}

	port := freePort(t)
	server := mochi.New(&mochi.Options{InlineClient: true})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("adding auth hook: %v", err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      "test",
		Address: fmt.Sprintf("127.0.0.1:%d", port),
	})
	if err := server.AddListener(tcp); err != nil {
		t.Fatalf("adding listener: %v", err)
	}

	go func() {
		_ = server.Serve() //nolint:errcheck // Close reports shutdown
	}()
	t.Cleanup(func() {
		_ = server.Close() //nolint:errcheck // Test cleanup
	})

	waitListening(t, port)

	return &Broker{Server: server, Host: "127.0.0.1", Port: port}
}

// DropAfterConnect makes the broker cut every client as soon as its session
// is established, right after CONNACK.
func (b *Broker) DropAfterConnect(t *testing.T) {
	t.Helper()
	if err := b.Server.AddHook(new(dropHook), nil); err != nil {
		t.Fatalf("adding drop hook: %v", err)
	}
}

type dropHook struct {
	mochi.HookBase
}

func (h *dropHook) ID() string { return "drop-after-connect" }

func (h *dropHook) Provides(b byte) bool {
	return bytes.Contains([]byte{mochi.OnSessionEstablished}, []byte{b})
}

func (h *dropHook) OnSessionEstablished(cl *mochi.Client, _ packets.Packet) {
	cl.Stop(fmt.Errorf("dropped after connect by test"))
}

// Capture subscribes the inline client to filter and records every delivery.
func (b *Broker) Capture(t *testing.T, filter string, id int) *Recorder {
	t.Helper()
	rec := &Recorder{}
	err := b.Server.Subscribe(filter, id, func(_ *mochi.Client, _ packets.Subscription, pk packets.Packet) {
		rec.add(pk.TopicName, string(pk.Payload))
	})
	if err != nil {
		t.Fatalf("inline subscribe %s: %v", filter, err)
	}
	return rec
}

// Publish sends a message from the inline client.
func (b *Broker) Publish(t *testing.T, topic, payload string) {
	t.Helper()
	if err := b.Server.Publish(topic, []byte(payload), false, 0); err != nil {
		t.Fatalf("inline publish %s: %v", topic, err)
	}
}

// Kick drops a connected client without a DISCONNECT, as a network fault would.
func (b *Broker) Kick(t *testing.T, clientID string) {
	t.Helper()
	cl, ok := b.Server.Clients.Get(clientID)
	if !ok {
		t.Fatalf("client %q not connected", clientID)
	}
	cl.Stop(fmt.Errorf("kicked by test"))
}

// Connected reports whether the broker currently holds a live client with clientID.
func (b *Broker) Connected(clientID string) bool {
	cl, ok := b.Server.Clients.Get(clientID)
	return ok && !cl.Closed()
}

// Delivery is one message seen by a Recorder.
type Delivery struct {
	Topic   string
	Payload string
}

// Recorder collects deliveries from the inline client.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func (r *Recorder) add(topic, payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, Delivery{Topic: topic, Payload: payload})
}

// Deliveries returns a copy of everything recorded so far.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// Len returns the number of recorded deliveries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	defer l.Close() //nolint:errcheck // Port probe
	return l.Addr().(*net.TCPAddr).Port
}

func waitListening(t *testing.T, port int) {
	t.Helper()
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			_ = conn.Close() //nolint:errcheck // Probe
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("broker did not start listening on %s", addr)
}
