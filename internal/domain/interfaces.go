// File: internal/domain/interfaces.go
package domain

import (
	"context"
	"time"
)

// SelectOption is one <option> of a select element as rendered by the page.
type SelectOption struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// Page abstracts the single browser tab every portal interaction runs
// through. The concrete implementation drives Chrome over CDP; tests supply
// fakes. All methods honor ctx cancellation.
type Page interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Content(ctx context.Context) (string, error)

	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Press(ctx context.Context, selector, key string) error

	Options(ctx context.Context, selector string) ([]SelectOption, error)
	SetSelectValue(ctx context.Context, selector, value string) error
	DispatchChange(ctx context.Context, selector string) error
	IsEnabled(ctx context.Context, selector string) (bool, error)

	// Evaluate runs script in the page and unmarshals its result into out.
	// Pass a nil out to discard the result.
	Evaluate(ctx context.Context, script string, out any) error

	// ExposeFunc registers fn under window[name] so page scripts can call
	// back into the process. Re-registering the same name is a no-op.
	ExposeFunc(ctx context.Context, name string, fn func(payload string)) error

	Screenshot(ctx context.Context, path string) error
	Settle(ctx context.Context, d time.Duration) error
}

// AccountStore persists account rows and their per-run status updates.
type AccountStore interface {
	Accounts() []*Account
	SetStatus(username, check string, ok bool) error
	SetAvailableBanks(username string, banks []string) error
}

// Ledger is the append-only record of completed applications.
type Ledger interface {
	IsCompleted(username, company string) (bool, error)
	Record(rec Record) error
}
