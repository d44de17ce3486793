// File: internal/domain/offering.go
package domain

import "time"

// ActionKind distinguishes a fresh application from a revision of an
// existing one. The portal renders a different button label and routes to a
// different URL pattern for each.
type ActionKind string

const (
	ActionApply ActionKind = "apply"
	ActionEdit  ActionKind = "edit"
)

// Offering is one actionable share offering discovered on the portal's
// application listing. Index is the position of the offering's action button
// among all actionable buttons on the page at discovery time; it is used to
// re-locate the button when navigating by URL fails.
type Offering struct {
	Company string
	Kind    ActionKind
	URL     string
	Index   int
}

// Record is one completed-application entry in the history ledger.
type Record struct {
	Name      string
	Username  string
	BOID      string
	Company   string
	URL       string
	Bank      string
	AppliedAt time.Time
}

// BankAlreadyApplied is the Bank value recorded when a completion is
// detected from the portal's edit state rather than from a submission this
// run performed, so no bank selection took place.
const BankAlreadyApplied = "Already Applied (N/A)"
