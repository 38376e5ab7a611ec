// Package scheduler runs the switch's single cooperative loop.
//
// Each iteration services the update transport inside a critical section,
// then ticks the broker session. Both steps are non-blocking once the
// session is up, so the loop spins without sleeping unless an idle pause
// is configured.
//
// The critical section suspends competing periodic work (the heartbeat)
// for the duration of the update check and resumes it on every exit path:
//
//	err := scheduler.Critical(updater.Service, heartbeat)
package scheduler
