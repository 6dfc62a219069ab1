// Package logging assembles the slog loggers used across pulpit.
//
// It owns the console and JSON handlers, level parsing and output fan-out to
// stdout plus the daemon log file. Context helpers tag log lines with the
// video ID, pipeline stage and request correlation ID carried on a
// context.Context, so pipeline code never threads those values by hand.
//
// Warnings and errors that operators act on go through WarnWithContext and
// ErrorWithContext, which guarantee event_type, error_hint and impact fields.
package logging
