package flow

import "errors"

var (
	// ErrRunnerStopped is returned by Start after Stop, or after Run returned.
	ErrRunnerStopped = errors.New("flow runner stopped")

	// ErrJournalWrite is returned by Execute when the flow committed but its
	// journal entry could not be written. The flow must not be retried.
	ErrJournalWrite = errors.New("flow committed but journal write failed")
)
