package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Message is one inbound delivery. The payload is a private copy.
type Message struct {
	Topic   string
	Payload []byte
}

// Transport holds at most one paho session.
//
// Thread Safety:
//   - Public methods are meant for a single owner goroutine.
//   - paho's delivery and connection-lost goroutines only touch the
//     delivery channel and the fault, both guarded by mu.
type Transport struct {
	identity Identity
	will     Will
	opts     Options

	mu      sync.Mutex
	client  pahomqtt.Client
	inbound chan Message
	done    chan struct{}
	fault   error
}

// NewTransport validates the last will and returns a disconnected transport.
//
// Parameters:
//   - identity: Broker address, client ID and credentials
//   - will: Last will, fixed for the life of the transport
//   - opts: Timeouts and delivery buffer size (zero values select defaults)
//
// Returns:
//   - *Transport: Transport ready for Connect
//   - error: If the will is invalid
func NewTransport(identity Identity, will Will, opts Options) (*Transport, error) {
	if err := will.validate(); err != nil {
		return nil, err
	}
	return &Transport{
		identity: identity,
		will:     will,
		opts:     opts.withDefaults(),
	}, nil
}

// Connect opens a fresh broker session, dropping any previous one.
//
// It blocks until the broker acknowledges the connection, the connect
// timeout elapses, or ctx is cancelled. Deliveries left over from the
// previous session are discarded.
func (t *Transport) Connect(ctx context.Context) error {
	t.Close()

	inbound := make(chan Message, t.opts.InboundBuffer)
	done := make(chan struct{})

	opts := buildClientOptions(t.identity, t.opts)
	configureWill(opts, t.will)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.recordFault(done, err)
	})

	client := pahomqtt.NewClient(opts)

	// The session is installed before CONNACK so a loss reported straight
	// after it is attributed to this session.
	t.mu.Lock()
	t.client = client
	t.inbound = inbound
	t.done = done
	t.fault = nil
	t.mu.Unlock()

	if err := waitToken(ctx, client.Connect(), t.opts.ConnectTimeout); err != nil {
		t.forget(done)
		client.Disconnect(0)
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, t.identity.BrokerURL(), err)
	}

	return nil
}

// forget clears the session identified by done, if it is still current.
func (t *Transport) forget(done chan struct{}) {
	t.mu.Lock()
	current := t.done == done
	if current {
		t.client = nil
		t.inbound = nil
		t.done = nil
		t.fault = nil
	}
	t.mu.Unlock()

	if current {
		close(done)
	}
}

// recordFault marks the session identified by done as lost.
// Faults from an already replaced session are ignored.
func (t *Transport) recordFault(done chan struct{}, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != done || t.fault != nil {
		return
	}
	t.fault = fmt.Errorf("%w: %w", ErrConnectionLost, err)
}

// Poll returns the next queued delivery without blocking.
//
// Returns:
//   - Message, true, nil: a delivery was available
//   - Message{}, false, nil: nothing queued
//   - Message{}, false, error: the session is gone (ErrConnectionLost or ErrNotConnected)
func (t *Transport) Poll() (Message, bool, error) {
	t.mu.Lock()
	inbound, fault := t.inbound, t.fault
	t.mu.Unlock()

	if fault != nil {
		return Message{}, false, fault
	}
	if inbound == nil {
		return Message{}, false, ErrNotConnected
	}

	select {
	case msg := <-inbound:
		return msg, true, nil
	default:
		return Message{}, false, nil
	}
}

// IsConnected reports whether a session is open and no fault has been recorded.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client != nil && t.fault == nil && t.client.IsConnectionOpen()
}

// Close disconnects cleanly (the broker does not publish the will) and
// forgets the session. Safe to call when not connected.
func (t *Transport) Close() {
	t.mu.Lock()
	client, done := t.client, t.done
	t.client = nil
	t.inbound = nil
	t.done = nil
	t.fault = nil
	t.mu.Unlock()

	if done != nil {
		close(done)
	}
	if client != nil {
		client.Disconnect(defaultDisconnectQuiesce)
	}
}

// session returns the current paho client and delivery plumbing.
func (t *Transport) session() (pahomqtt.Client, chan Message, chan struct{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fault != nil {
		return nil, nil, nil, t.fault
	}
	if t.client == nil {
		return nil, nil, nil, ErrNotConnected
	}
	return t.client, t.inbound, t.done, nil
}

// waitToken waits for a paho token, bounded by timeout and ctx.
func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
