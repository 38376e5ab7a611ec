// Package session keeps one broker session alive for the switch.
//
// The Manager is driven by the scheduler loop: each Tick either runs a
// connection cycle (connect, then subscribe to every command topic) or,
// when connected, drains the deliveries that are already queued into the
// Router. Nothing in the Manager starts goroutines or takes locks; it must
// only be used from the scheduler goroutine.
//
// State machine:
//
//	Disconnected ──Tick──▶ Connecting ──CONNACK + all SUBACKs──▶ Connected
//	     ▲                     │ subscribe failure                  │
//	     └─────────────────────┴──────── transport fault ───────────┘
//
// Connect failures are retried inside the cycle until one succeeds, the
// context is cancelled, or forever. Between attempts the Manager waits the
// Backoff delay, which is zero unless configured.
package session
