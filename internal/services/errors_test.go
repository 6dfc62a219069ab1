package services_test

import (
	"errors"
	"strings"
	"testing"

	"pulpit/internal/services"
	"pulpit/internal/store"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "acquisition", "yt-dlp", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"acquisition", "yt-dlp", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestFailureStatusMapping(t *testing.T) {
	policyErr := services.Wrap(services.ErrPolicy, "acquisition", "duration", "too long", nil)
	if status := services.FailureStatus(policyErr); status != store.StatusTooLong {
		t.Fatalf("expected too_long for policy error, got %s", status)
	}

	transientErr := services.Wrap(services.ErrTransient, "acquisition", "sources", "exhausted", errors.New("io"))
	if status := services.FailureStatus(transientErr); status != store.StatusFailed {
		t.Fatalf("expected failed for transient error, got %s", status)
	}

	if status := services.FailureStatus(nil); status != store.StatusFailed {
		t.Fatalf("expected failed for nil error, got %s", status)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"policy", services.Wrap(services.ErrPolicy, "", "", "cap", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "", "", "bad", nil), false},
		{"transient", services.Wrap(services.ErrTransient, "", "", "net", nil), true},
		{"external", services.Wrap(services.ErrExternalTool, "", "", "exit 1", nil), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Retryable(tc.err); got != tc.want {
				t.Fatalf("Retryable() = %v, want %v", got, tc.want)
			}
		})
	}
}
