// File: internal/history/migrate.go
package history

import (
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/purib/ipopilot/internal/domain"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// legacyEntry mirrors one element of the old JSON history array.
type legacyEntry struct {
	Name      string `json:"name"`
	UserName  string `json:"user_name"` // older exports used this key for the display name
	Username  string `json:"username"`
	BOID      string `json:"boid"`
	Company   string `json:"company"`
	URL       string `json:"url"`
	Bank      string `json:"bank"`
	AppliedAt string `json:"applied_at"`
}

// MigrateLegacy imports the old JSON history file at legacyPath into the
// CSV ledger, then renames the JSON file to <path>.bak so the import runs
// only once. A missing legacy file is not an error. Entries already present
// in the ledger are skipped.
func (l *Ledger) MigrateLegacy(legacyPath string) error {
	data, err := os.ReadFile(legacyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read legacy history: %w", err)
	}

	var entries []legacyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse legacy history: %w", err)
	}

	migrated := 0
	for _, e := range entries {
		if e.Username == "" || e.Company == "" {
			continue
		}
		done, err := l.IsCompleted(e.Username, e.Company)
		if err != nil {
			return err
		}
		if done {
			continue
		}
		name := e.Name
		if name == "" {
			name = e.UserName
		}
		rec := domain.Record{
			Name:     name,
			Username: e.Username,
			BOID:     e.BOID,
			Company:  e.Company,
			URL:      e.URL,
			Bank:     e.Bank,
		}
		if ts, perr := time.ParseInLocation(timeLayout, e.AppliedAt, time.Local); perr == nil {
			rec.AppliedAt = ts
		}
		if err := l.Record(rec); err != nil {
			return err
		}
		migrated++
	}

	backup := legacyPath + ".bak"
	if err := os.Rename(legacyPath, backup); err != nil {
		return fmt.Errorf("failed to back up legacy history: %w", err)
	}

	l.logger.Info("Migrated legacy history file",
		zap.String("from", legacyPath),
		zap.String("backup", backup),
		zap.Int("entries", migrated))
	return nil
}
