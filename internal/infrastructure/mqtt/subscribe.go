package mqtt

import (
	"context"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// subackFailure is the SUBACK return code for a refused subscription.
const subackFailure = 0x80

// Subscribe asks the broker for a topic and queues its deliveries for Poll.
//
// Deliveries keep broker order. When the queue is full the paho delivery
// goroutine waits rather than dropping, until the session is closed.
//
// Parameters:
//   - topic: The topic filter to subscribe to
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, ErrConnectionLost,
//     or ErrSubscribeFailed wrapping the cause
func (t *Transport) Subscribe(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	client, inbound, done, err := t.session()
	if err != nil {
		return err
	}

	handler := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		delivery := Message{
			Topic:   msg.Topic(),
			Payload: append([]byte(nil), msg.Payload()...),
		}
		select {
		case inbound <- delivery:
		case <-done:
		}
	}

	token := client.Subscribe(topic, qos, handler)
	if err := waitToken(context.Background(), token, defaultOperationTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}

	if sub, ok := token.(*pahomqtt.SubscribeToken); ok {
		if code, found := sub.Result()[topic]; found && code >= subackFailure {
			return fmt.Errorf("%w: %s: broker refused (code 0x%02x)", ErrSubscribeFailed, topic, code)
		}
	}

	return nil
}
