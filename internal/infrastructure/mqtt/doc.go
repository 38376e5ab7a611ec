// Package mqtt is the broker transport of the Gray Logic switch.
//
// It wraps paho.mqtt.golang for a single-threaded owner:
//   - One broker session at a time, opened with identity, credentials and last will
//   - No automatic reconnection; the session manager decides when to retry
//   - Deliveries are queued on a bounded channel and drained by Poll, in order
//   - A dropped connection is recorded as a fault and reported by Poll/Publish
//
// # Topics
//
// Device topics follow <category>/<client_id>/<group>/<name>:
//
//	topics := mqtt.Topics{Category: "switch", ClientID: "client_id"}
//	topics.Command("state") // switch/client_id/cmnd/state
//	topics.Status("rgd")    // switch/client_id/status/rgd
//	topics.Will()           // switch/client_id/will
//
// # Usage
//
//	t, err := mqtt.NewTransport(identity, will, mqtt.Options{})
//	if err != nil {
//	    return err
//	}
//	if err := t.Connect(ctx); err != nil {
//	    return err
//	}
//	defer t.Close()
//
//	_ = t.Subscribe(topics.Command("state"), 0)
//	for {
//	    msg, ok, err := t.Poll()
//	    if err != nil || !ok {
//	        break
//	    }
//	    handle(msg)
//	}
package mqtt
