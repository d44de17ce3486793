// File: internal/accounts/store.go
package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/purib/ipopilot/internal/domain"
	"go.uber.org/zap"
)

var rosterHeader = []string{
	"Name", "Active", "DP ID", "Username", "Password",
	"CRN", "PIN", "Bank Name", "Status", "Available Banks",
}

// bankListSeparator joins the observed bank names into one CSV cell.
const bankListSeparator = "|"

// Store holds the account roster loaded from a CSV file and writes status
// updates back to it. The whole file is rewritten on every update; rosters
// are small.
type Store struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	accounts []*domain.Account
}

// NewStore loads the roster at path. A missing file yields an empty store;
// the file is created when the first account is saved.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger.Named("accounts"),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Accounts returns all loaded accounts, active or not, in file order.
func (s *Store) Accounts() []*domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

// Active returns the accounts marked active that carry usable credentials.
func (s *Store) Active() []*domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Account
	for _, a := range s.accounts {
		if a.Active && a.HasCredentials() {
			out = append(out, a)
		}
	}
	return out
}

// SetStatus records the outcome of a named check ("credentials", "pin") for
// the account and persists the roster. Unknown usernames are ignored.
func (s *Store) SetStatus(username, check string, ok bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc := s.find(username)
	if acc == nil {
		s.logger.Warn("Status update for unknown account", zap.String("username", username))
		return nil
	}
	if ok {
		acc.Status = "OK"
	} else {
		acc.Status = "Failed " + check
	}
	return s.save()
}

// SetAvailableBanks persists the bank names observed in the portal's
// dropdown so operators can fix a misspelled preference between runs.
func (s *Store) SetAvailableBanks(username string, banks []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc := s.find(username)
	if acc == nil {
		return nil
	}
	acc.AvailableBanks = append([]string(nil), banks...)
	return s.save()
}

// Add appends an account to the roster and persists it. Duplicate usernames
// are rejected.
func (s *Store) Add(acc *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.find(acc.Username) != nil {
		return fmt.Errorf("account %q already exists", acc.Username)
	}
	s.accounts = append(s.accounts, acc)
	return s.save()
}

func (s *Store) find(username string) *domain.Account {
	for _, a := range s.accounts {
		if a.Username == username {
			return a
		}
	}
	return nil
}

func (s *Store) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("Accounts file not found, starting empty", zap.String("path", s.path))
			return nil
		}
		return fmt.Errorf("failed to open accounts file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var idx map[string]int
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to parse accounts file: %w", err)
		}
		if idx == nil {
			// Header row. Strip the UTF-8 BOM spreadsheet exports prepend.
			row[0] = strings.TrimPrefix(row[0], "\uFEFF")
			idx = headerIndex(row)
			continue
		}
		acc := rowToAccount(row, idx)
		if acc.Username == "" {
			continue
		}
		s.accounts = append(s.accounts, acc)
	}

	s.logger.Info("Loaded accounts", zap.Int("count", len(s.accounts)), zap.String("path", s.path))
	return nil
}

func (s *Store) save() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to write accounts file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(rosterHeader); err != nil {
		return err
	}
	for _, a := range s.accounts {
		active := "False"
		if a.Active {
			active = "True"
		}
		row := []string{
			a.Name, active, a.DPID, a.Username, a.Password,
			a.CRN, a.PIN, a.BankName, a.Status,
			strings.Join(a.AvailableBanks, bankListSeparator),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return idx
}

func rowToAccount(row []string, idx map[string]int) *domain.Account {
	get := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	// A roster without an Active column means every row participates.
	active := true
	if _, ok := idx["active"]; ok {
		active = parseActive(get("active"))
	}
	acc := &domain.Account{
		Name:     get("name"),
		Active:   active,
		DPID:     get("dp id"),
		Username: get("username"),
		Password: get("password"),
		CRN:      get("crn"),
		PIN:      get("pin"),
		BankName: get("bank name"),
		Status:   get("status"),
	}
	if acc.Name == "" {
		acc.Name = acc.Username
	}
	if banks := get("available banks"); banks != "" {
		for _, b := range strings.Split(banks, bankListSeparator) {
			if b = strings.TrimSpace(b); b != "" {
				acc.AvailableBanks = append(acc.AvailableBanks, b)
			}
		}
	}
	return acc
}

func parseActive(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "y":
		return true
	}
	return false
}
