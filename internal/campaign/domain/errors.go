package domain

import "errors"

var (
	// ErrNotFound is returned when a campaign does not exist.
	ErrNotFound = errors.New("campaign not found")

	// ErrDispatchInProgress is returned when a dispatch is requested for a
	// campaign whose previous dispatch run has not resolved yet.
	ErrDispatchInProgress = errors.New("campaign dispatch already in progress")

	// ErrInvalidTransition is returned when a status change is requested that
	// the campaign state machine does not allow.
	ErrInvalidTransition = errors.New("invalid campaign status transition")
)
