// Package command turns recognised command phrases into device state changes.
//
// Each Handler owns the state of exactly one feature. Handling a payload is
// a pure mapping from text to an optional Report: a recognised phrase
// updates the feature state, drives the Actuator and returns the reply to
// publish; anything else returns nothing and changes nothing.
//
// Handlers run on the scheduler goroutine only and are not safe for
// concurrent use.
package command
