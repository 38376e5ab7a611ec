package mqtt

import (
	"context"
	"fmt"
	"strings"
)

// Publish sends one message and waits for the transport to accept it.
//
// There is no retry and no queueing: a failed publish is reported and forgotten.
//
// Parameters:
//   - topic: The topic to publish to (no wildcards)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message
//   - payload: The message payload (max 1MB)
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrPayloadTooLarge for bad arguments;
//     ErrNotConnected, ErrConnectionLost or ErrPublishFailed when the session failed
func (t *Transport) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}

	client, _, _, err := t.session()
	if err != nil {
		return err
	}

	token := client.Publish(topic, qos, retained, payload)
	if err := waitToken(context.Background(), token, defaultOperationTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}

	return nil
}
