package services

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when an operation needs a signed-in user and got none.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotFound is returned by Store lookups that matched no row.
	ErrNotFound = errors.New("not found")
	// ErrPlanNotFound means no position can be computed because the plan does not exist.
	ErrPlanNotFound = errors.New("reading plan not found")
	// ErrInvalidPosition rejects negative saved positions.
	ErrInvalidPosition = errors.New("invalid position")
	// ErrForbidden is returned when the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")
)

// PersistenceError wraps a storage failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
