package testsupport

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Invocation records one call made through a FakeRunner.
type Invocation struct {
	Name string
	Args []string
}

// FakeRunner is a scripted services.CommandRunner. Handlers are matched by
// binary name; unmatched calls fail.
type FakeRunner struct {
	mu       sync.Mutex
	handlers map[string]func(args []string) ([]byte, error)
	calls    []Invocation
}

// NewFakeRunner returns an empty runner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{handlers: make(map[string]func([]string) ([]byte, error))}
}

// Handle registers the response for a binary name.
func (f *FakeRunner) Handle(name string, fn func(args []string) ([]byte, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = fn
}

// Run satisfies services.CommandRunner.
func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Invocation{Name: name, Args: append([]string(nil), args...)})
	handler := f.handlers[name]
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fmt.Errorf("fake runner: no handler for %s %s", name, strings.Join(args, " "))
	}
	return handler(args)
}

// Calls returns the recorded invocations.
func (f *FakeRunner) Calls() []Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Invocation(nil), f.calls...)
}

// Called reports whether name was invoked.
func (f *FakeRunner) Called(name string) bool {
	for _, call := range f.Calls() {
		if call.Name == name {
			return true
		}
	}
	return false
}

// ArgValue returns the value following flag in args.
func ArgValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}
