package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for a CONNACK.
	defaultConnectTimeout = 10 * time.Second

	// defaultOperationTimeout is the maximum time to wait for a publish or subscribe acknowledgment.
	defaultOperationTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 15 * time.Second

	// defaultInboundBuffer is the number of deliveries held between two polls.
	defaultInboundBuffer = 64

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// maxPayloadSize bounds outbound payloads.
	maxPayloadSize = 1 << 20

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Identity is how the switch presents itself to the broker.
// It is built once at start-up and never changes.
type Identity struct {
	Host     string
	Port     int
	TLS      bool
	ClientID string
	Username string
	Password string
}

// BrokerURL returns the paho broker URL (tcp:// or ssl://).
func (i Identity) BrokerURL() string {
	scheme := "tcp"
	if i.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, i.Host, i.Port)
}

// Will is the last will the broker publishes if the session drops uncleanly.
type Will struct {
	Topic   string
	QoS     byte
	Retain  bool
	Payload string
}

func (w Will) validate() error {
	if w.QoS > maxQoS {
		return fmt.Errorf("last will: %w", ErrInvalidQoS)
	}
	return nil
}

// Options tunes the transport. Zero values select the defaults.
type Options struct {
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
	InboundBuffer  int
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = defaultKeepAlive
	}
	if o.InboundBuffer <= 0 {
		o.InboundBuffer = defaultInboundBuffer
	}
	return o
}

// buildClientOptions creates paho MQTT options for one connection attempt.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID and credentials (if provided)
//   - Clean session and ordered delivery
//   - No auto-reconnect and no connect retry: the session manager owns the cycle
func buildClientOptions(id Identity, o Options) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(id.BrokerURL())
	opts.SetClientID(id.ClientID)

	if id.Username != "" {
		opts.SetUsername(id.Username)
		opts.SetPassword(id.Password)
	}

	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(o.ConnectTimeout)
	opts.SetKeepAlive(o.KeepAlive)

	if id.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// configureWill attaches the last will. An empty topic leaves the will unset.
func configureWill(opts *pahomqtt.ClientOptions, will Will) {
	if will.Topic == "" {
		return
	}
	opts.SetWill(will.Topic, will.Payload, will.QoS, will.Retain)
}
