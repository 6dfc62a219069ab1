package llm_test

import (
	"context"
	"errors"
	"testing"

	"pulpit/internal/logging"
	"pulpit/internal/services/llm"
)

type fakeBackend struct {
	name       string
	configured bool
	err        error
	calls      int
}

func (f *fakeBackend) Name() string     { return f.name }
func (f *fakeBackend) Configured() bool { return f.configured }

func (f *fakeBackend) Generate(context.Context, string, llm.Params) (llm.Completion, error) {
	f.calls++
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Text: "answer from " + f.name}, nil
}

func TestRouterFallsBackInOrder(t *testing.T) {
	primary := &fakeBackend{name: "primary", configured: true, err: errors.New("boom")}
	secondary := &fakeBackend{name: "secondary", configured: true}
	router := llm.NewRouter(logging.NewNop(), primary, secondary)

	completion, err := router.Generate(context.Background(), "oi", llm.Params{})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if completion.Backend != "secondary" || completion.Text != "answer from secondary" {
		t.Fatalf("unexpected completion %+v", completion)
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Fatalf("expected one call each, got %d/%d", primary.calls, secondary.calls)
	}
}

func TestRouterUsesPrimaryFirst(t *testing.T) {
	primary := &fakeBackend{name: "primary", configured: true}
	secondary := &fakeBackend{name: "secondary", configured: true}
	router := llm.NewRouter(logging.NewNop(), primary, secondary)
	completion, err := router.Generate(context.Background(), "oi", llm.Params{})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if completion.Backend != "primary" || secondary.calls != 0 {
		t.Fatalf("expected primary only, got %+v (secondary calls %d)", completion, secondary.calls)
	}
}

func TestRouterSkipsUnconfigured(t *testing.T) {
	primary := &fakeBackend{name: "primary"}
	router := llm.NewRouter(logging.NewNop(), primary)
	if router.Available() {
		t.Fatal("expected router unavailable")
	}
	if _, err := router.Generate(context.Background(), "oi", llm.Params{}); !errors.Is(err, llm.ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}
	if primary.calls != 0 {
		t.Fatal("unconfigured backend must not be called")
	}
}

func TestRouterJoinsErrors(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	router := llm.NewRouter(logging.NewNop(),
		&fakeBackend{name: "a", configured: true, err: first},
		&fakeBackend{name: "b", configured: true, err: second},
	)
	_, err := router.Generate(context.Background(), "oi", llm.Params{})
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("expected both errors joined, got %v", err)
	}
}
