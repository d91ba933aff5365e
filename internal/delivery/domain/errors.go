package domain

import "errors"

var (
	// ErrNotFound is returned when a delivery job does not exist.
	ErrNotFound = errors.New("delivery job not found")

	// ErrNoDueJobs is returned by a claim call that found nothing eligible.
	ErrNoDueJobs = errors.New("no due delivery jobs")
)
