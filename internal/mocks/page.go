// File: internal/mocks/page.go
// Package mocks provides hand-written fakes for the interfaces in
// internal/domain, used across package tests.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/purib/ipopilot/internal/domain"
)

// Call records one method invocation on the fake page.
type Call struct {
	Method   string
	Selector string
	Value    string
}

// FakePage is a configurable in-memory domain.Page. Zero value is usable:
// every action succeeds and is recorded. Behavior is steered through the
// exported fields; all state is mutex guarded so exposed callbacks may fire
// from other goroutines.
type FakePage struct {
	mu    sync.Mutex
	calls []Call
	url   string

	// HTML is returned by Content.
	HTML string

	// NavigateErr fails every Navigate when set.
	NavigateErr error
	// CurrentURLFunc overrides CurrentURL; by default the last navigated
	// URL is returned.
	CurrentURLFunc func() (string, error)

	// WaitVisibleErr fails WaitVisible for the given selectors.
	WaitVisibleErr map[string]error
	// FillErr fails Fill for the given selectors.
	FillErr map[string]error
	// ClickFailures makes the first N clicks on a selector fail.
	ClickFailures map[string]int

	// OptionsFunc overrides Options; it receives the selector and the
	// 1-based call count for that selector, letting tests model dropdowns
	// that populate over time.
	OptionsFunc  func(selector string, call int) ([]domain.SelectOption, error)
	optionsCalls map[string]int
	// OptionsBySelector is the static fallback when OptionsFunc is nil.
	OptionsBySelector map[string][]domain.SelectOption

	// DisabledSelectors marks selectors IsEnabled reports false for.
	DisabledSelectors map[string]bool

	// EvaluateFunc overrides Evaluate; default succeeds and leaves out
	// untouched.
	EvaluateFunc func(script string, out any) error

	// Exposed collects functions registered via ExposeFunc, keyed by name.
	Exposed map[string]func(payload string)

	// Screenshots collects the paths passed to Screenshot.
	Screenshots []string
}

var _ domain.Page = (*FakePage)(nil)

func (f *FakePage) record(method, selector, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: method, Selector: selector, Value: value})
}

// Calls returns a copy of all recorded invocations.
func (f *FakePage) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Called reports whether method was invoked on selector at least once.
func (f *FakePage) Called(method, selector string) bool {
	for _, c := range f.Calls() {
		if c.Method == method && c.Selector == selector {
			return true
		}
	}
	return false
}

// FilledValue returns the last value filled into selector.
func (f *FakePage) FilledValue(selector string) string {
	var val string
	for _, c := range f.Calls() {
		if c.Method == "Fill" && c.Selector == selector {
			val = c.Value
		}
	}
	return val
}

// SetURL primes the URL CurrentURL reports.
func (f *FakePage) SetURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
}

func (f *FakePage) Navigate(_ context.Context, url string) error {
	f.record("Navigate", "", url)
	if f.NavigateErr != nil {
		return f.NavigateErr
	}
	f.mu.Lock()
	f.url = url
	f.mu.Unlock()
	return nil
}

func (f *FakePage) CurrentURL(context.Context) (string, error) {
	if f.CurrentURLFunc != nil {
		return f.CurrentURLFunc()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

func (f *FakePage) Content(context.Context) (string, error) {
	return f.HTML, nil
}

func (f *FakePage) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	f.record("WaitVisible", selector, "")
	if err, ok := f.WaitVisibleErr[selector]; ok {
		return err
	}
	return nil
}

func (f *FakePage) Click(_ context.Context, selector string) error {
	f.record("Click", selector, "")
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.ClickFailures[selector]; ok && n > 0 {
		f.ClickFailures[selector] = n - 1
		return fmt.Errorf("click on %q failed", selector)
	}
	return nil
}

func (f *FakePage) Fill(_ context.Context, selector, value string) error {
	f.record("Fill", selector, value)
	if err, ok := f.FillErr[selector]; ok {
		return err
	}
	return nil
}

func (f *FakePage) Press(_ context.Context, selector, key string) error {
	f.record("Press", selector, key)
	return nil
}

func (f *FakePage) Options(_ context.Context, selector string) ([]domain.SelectOption, error) {
	f.record("Options", selector, "")
	if f.OptionsFunc != nil {
		f.mu.Lock()
		if f.optionsCalls == nil {
			f.optionsCalls = make(map[string]int)
		}
		f.optionsCalls[selector]++
		call := f.optionsCalls[selector]
		f.mu.Unlock()
		return f.OptionsFunc(selector, call)
	}
	return f.OptionsBySelector[selector], nil
}

func (f *FakePage) SetSelectValue(_ context.Context, selector, value string) error {
	f.record("SetSelectValue", selector, value)
	return nil
}

func (f *FakePage) DispatchChange(_ context.Context, selector string) error {
	f.record("DispatchChange", selector, "")
	return nil
}

func (f *FakePage) IsEnabled(_ context.Context, selector string) (bool, error) {
	f.record("IsEnabled", selector, "")
	return !f.DisabledSelectors[selector], nil
}

func (f *FakePage) Evaluate(_ context.Context, script string, out any) error {
	f.record("Evaluate", "", script)
	if f.EvaluateFunc != nil {
		return f.EvaluateFunc(script, out)
	}
	return nil
}

func (f *FakePage) ExposeFunc(_ context.Context, name string, fn func(payload string)) error {
	f.record("ExposeFunc", name, "")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Exposed == nil {
		f.Exposed = make(map[string]func(string))
	}
	if _, ok := f.Exposed[name]; ok {
		return nil
	}
	f.Exposed[name] = fn
	return nil
}

// Trigger invokes an exposed callback as if the page had called it.
func (f *FakePage) Trigger(name, payload string) {
	f.mu.Lock()
	fn := f.Exposed[name]
	f.mu.Unlock()
	if fn != nil {
		fn(payload)
	}
}

func (f *FakePage) Screenshot(_ context.Context, path string) error {
	f.record("Screenshot", "", path)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Screenshots = append(f.Screenshots, path)
	return nil
}

func (f *FakePage) Settle(ctx context.Context, _ time.Duration) error {
	// Fakes do not sleep; honor only cancellation.
	f.record("Settle", "", "")
	return ctx.Err()
}
