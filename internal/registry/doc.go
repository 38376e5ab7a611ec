// Package registry holds the fixed table of command bindings for a device.
//
// A binding ties one feature (power, colour) to the topic its commands
// arrive on, the topic its state is reported on, and the phrases it
// understands. The table is built once before the first broker connection
// and never changes afterwards, so lookups need no locking.
//
// Usage:
//
//	topics := mqtt.Topics{Category: "switch", ClientID: "kitchen-01"}
//	reg, err := registry.New(registry.DefaultBindings(topics)...)
//	if err != nil {
//	    return err
//	}
//	b, ok := reg.Lookup("switch/kitchen-01/cmnd/state")
package registry
