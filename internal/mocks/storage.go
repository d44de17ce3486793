// File: internal/mocks/storage.go
package mocks

import (
	"sync"

	"github.com/purib/ipopilot/internal/domain"
)

// FakeAccountStore is an in-memory domain.AccountStore.
type FakeAccountStore struct {
	mu       sync.Mutex
	accounts []*domain.Account
	// Statuses maps username to the last recorded status string.
	Statuses map[string]string
	// Banks maps username to the last persisted available-banks list.
	Banks map[string][]string
}

var _ domain.AccountStore = (*FakeAccountStore)(nil)

func NewFakeAccountStore(accounts ...*domain.Account) *FakeAccountStore {
	return &FakeAccountStore{
		accounts: accounts,
		Statuses: make(map[string]string),
		Banks:    make(map[string][]string),
	}
}

func (s *FakeAccountStore) Accounts() []*domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

func (s *FakeAccountStore) SetStatus(username, check string, ok bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.Statuses[username] = "OK"
	} else {
		s.Statuses[username] = "Failed " + check
	}
	return nil
}

func (s *FakeAccountStore) SetAvailableBanks(username string, banks []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Banks[username] = append([]string(nil), banks...)
	return nil
}

// FakeLedger is an in-memory domain.Ledger keyed by (username, company).
type FakeLedger struct {
	mu      sync.Mutex
	Records []domain.Record
	// RecordErr fails every Record call when set.
	RecordErr error
}

var _ domain.Ledger = (*FakeLedger)(nil)

func (l *FakeLedger) IsCompleted(username, company string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.Records {
		if r.Username == username && r.Company == company {
			return true, nil
		}
	}
	return false, nil
}

func (l *FakeLedger) Record(rec domain.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.RecordErr != nil {
		return l.RecordErr
	}
	l.Records = append(l.Records, rec)
	return nil
}

// Snapshot returns a copy of the recorded entries.
func (l *FakeLedger) Snapshot() []domain.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Record, len(l.Records))
	copy(out, l.Records)
	return out
}
