package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrDuplicateActiveSession signals that an in-flight session already
	// exists for the same (source, target) pair.
	ErrDuplicateActiveSession = errors.New("active session already exists for peer pair")

	// ErrStaleSession signals that a session write carried a status the
	// row no longer holds; a concurrent writer got there first.
	ErrStaleSession = errors.New("session status changed concurrently")
)
