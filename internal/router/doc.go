// Package router dispatches inbound broker messages to command handlers.
//
// Dispatch is synchronous and one message at a time: Route copies the
// payload into a string, finds the binding by exact topic, runs its
// handler and, when the handler produces a report, publishes it before
// returning. The next message is not looked at until the report has been
// handed to the publisher.
package router
