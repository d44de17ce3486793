// File: internal/domain/account.go
package domain

import "strings"

// Account holds the credentials and per-run state for a single investor
// profile. Credentials are loaded from the accounts CSV; the mutable fields
// (AvailableBanks, Status) are written back as a run progresses.
type Account struct {
	Name     string
	Active   bool
	DPID     string
	Username string
	Password string
	CRN      string
	PIN      string

	// BankName is the preferred bank, matched case-insensitively against the
	// options the portal renders. Optional.
	BankName string

	// Status is the last recorded outcome for this account, e.g. "OK" or
	// "Failed credentials".
	Status string

	// AvailableBanks is the set of bank names observed in the portal's bank
	// dropdown, persisted so operators can correct BankName between runs.
	AvailableBanks []string
}

// HasCredentials reports whether the account carries the minimum fields
// required to attempt a login.
func (a *Account) HasCredentials() bool {
	return strings.TrimSpace(a.DPID) != "" &&
		strings.TrimSpace(a.Username) != "" &&
		strings.TrimSpace(a.Password) != ""
}
