package scheduler

// Suspender is periodic work that can be paused.
type Suspender interface {
	Suspend()
	Resume()
}

// Critical runs fn with every task suspended.
//
// Tasks are suspended in order and resumed in reverse order once fn
// returns, whether it returns an error or panics. A panic still
// propagates after the tasks are resumed.
func Critical(fn func() error, tasks ...Suspender) error {
	for _, task := range tasks {
		task.Suspend()
		defer task.Resume()
	}
	return fn()
}
