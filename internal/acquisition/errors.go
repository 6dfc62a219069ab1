package acquisition

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pulpit/internal/services"
)

var (
	// ErrTooLong marks a video whose duration exceeds the cap.
	ErrTooLong = errors.New("video exceeds maximum duration")
	// ErrExhausted marks a run where every source failed.
	ErrExhausted = errors.New("all transcript sources failed")
)

// Attempt records one source try.
type Attempt struct {
	Source  string
	Elapsed time.Duration
	Err     error
}

// ExhaustedError carries each failed attempt. It matches ErrExhausted and
// services.ErrTransient.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Source, a.Err))
	}
	if len(parts) == 0 {
		return ErrExhausted.Error() + ": no sources configured"
	}
	return ErrExhausted.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, services.ErrTransient}
}

func tooLong(duration, limit time.Duration) error {
	return fmt.Errorf("%w: %w: %s > %s", services.ErrPolicy, ErrTooLong, duration.Round(time.Second), limit)
}
