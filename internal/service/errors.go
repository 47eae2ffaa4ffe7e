package service

import (
	"fmt"

	"artbooru/api/internal/models"
)

// DuplicateError is the rejection outcome of the duplicate gate. It is a
// first-class result, not an infrastructure failure: it carries the
// matching posts so the caller can resolve intent (resubmit with
// IgnoreDuplicates, or abandon).
type DuplicateError struct {
	Matches []models.DuplicatePost
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate posts detected (%d matches)", len(e.Matches))
}

// InputError covers malformed drafts and undecodable images. No external
// state has been touched when one is returned, so there is nothing to
// compensate and nothing to retry.
type InputError struct {
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *InputError) Unwrap() error { return e.Err }

// StageError is an infrastructure failure at a named saga stage. By the
// time one is returned, every compensation for previously committed steps
// has already been attempted; Err is always the original cause, never a
// compensation failure.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
