package metrics

import "errors"

var (
	// ErrInvalidDelta indicates a negative counter increment. The counter is
	// left unchanged.
	ErrInvalidDelta = errors.New("metrics: counter delta must be non-negative")

	// ErrKindMismatch indicates a metric name was already registered with a
	// different kind.
	ErrKindMismatch = errors.New("metrics: metric already registered with a different kind")
)
