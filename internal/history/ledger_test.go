// File: internal/history/ledger_test.go
package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/purib/ipopilot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.csv")
	return NewLedger(path, zap.NewNop()), path
}

func TestLedgerRecordAndIsCompleted(t *testing.T) {
	ledger, path := newTestLedger(t)

	done, err := ledger.IsCompleted("user1", "Alpha Hydro")
	require.NoError(t, err)
	assert.False(t, done, "missing file means nothing is completed")

	rec := domain.Record{
		Name:      "User One",
		Username:  "user1",
		BOID:      "13000",
		Company:   "Alpha Hydro",
		URL:       "https://meroshare.cdsc.com.np/#/asba/apply/123",
		Bank:      "Global IME Bank",
		AppliedAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local),
	}
	require.NoError(t, ledger.Record(rec))

	done, err = ledger.IsCompleted("user1", "Alpha Hydro")
	require.NoError(t, err)
	assert.True(t, done)

	// Same company under a different account stays open.
	done, err = ledger.IsCompleted("user2", "Alpha Hydro")
	require.NoError(t, err)
	assert.False(t, done)

	// Different company under the same account stays open.
	done, err = ledger.IsCompleted("user1", "Beta Cement")
	require.NoError(t, err)
	assert.False(t, done)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "Name,Username,BOID,Company,URL,Bank,Applied At")
	assert.Contains(t, content, "Alpha Hydro")
	assert.Contains(t, content, "2026-08-30 10:00:00")
}

func TestLedgerHeaderWrittenOnce(t *testing.T) {
	ledger, _ := newTestLedger(t)

	require.NoError(t, ledger.Record(domain.Record{Username: "user1", Company: "Alpha"}))
	require.NoError(t, ledger.Record(domain.Record{Username: "user1", Company: "Beta"}))

	records, err := ledger.All()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Alpha", records[0].Company)
	assert.Equal(t, "Beta", records[1].Company)
}

func TestLedgerSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	first := NewLedger(path, zap.NewNop())
	require.NoError(t, first.Record(domain.Record{Username: "user1", Company: "Alpha"}))

	second := NewLedger(path, zap.NewNop())
	done, err := second.IsCompleted("user1", "Alpha")
	require.NoError(t, err)
	assert.True(t, done, "completion must persist across process restarts")
}

func TestLedgerAlreadyAppliedSentinel(t *testing.T) {
	ledger, _ := newTestLedger(t)

	require.NoError(t, ledger.Record(domain.Record{
		Username: "user1",
		Company:  "Gamma Micro",
		Bank:     domain.BankAlreadyApplied,
	}))

	records, err := ledger.All()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.BankAlreadyApplied, records[0].Bank)
}

func TestMigrateLegacy(t *testing.T) {
	t.Run("imports entries and renames the source", func(t *testing.T) {
		dir := t.TempDir()
		legacy := filepath.Join(dir, "completed_applications.json")
		payload := `[
			{"name":"User One","username":"user1","boid":"13000","company":"Alpha Hydro","url":"https://x/#/asba/edit/1","applied_at":"2025-01-02 09:30:00"},
			{"name":"User Two","username":"user2","boid":"13001","company":"Alpha Hydro","url":""}
		]`
		require.NoError(t, os.WriteFile(legacy, []byte(payload), 0o644))

		ledger := NewLedger(filepath.Join(dir, "history.csv"), zap.NewNop())
		require.NoError(t, ledger.MigrateLegacy(legacy))

		done, err := ledger.IsCompleted("user1", "Alpha Hydro")
		require.NoError(t, err)
		assert.True(t, done)
		done, err = ledger.IsCompleted("user2", "Alpha Hydro")
		require.NoError(t, err)
		assert.True(t, done)

		_, err = os.Stat(legacy)
		assert.True(t, os.IsNotExist(err), "legacy file should be renamed away")
		_, err = os.Stat(legacy + ".bak")
		assert.NoError(t, err)
	})

	t.Run("missing legacy file is a no-op", func(t *testing.T) {
		ledger, _ := newTestLedger(t)
		assert.NoError(t, ledger.MigrateLegacy(filepath.Join(t.TempDir(), "absent.json")))
	})

	t.Run("second migration of same data adds nothing", func(t *testing.T) {
		dir := t.TempDir()
		payload := `[{"username":"user1","company":"Alpha"}]`
		ledger := NewLedger(filepath.Join(dir, "history.csv"), zap.NewNop())

		for i := 0; i < 2; i++ {
			legacy := filepath.Join(dir, "completed_applications.json")
			require.NoError(t, os.WriteFile(legacy, []byte(payload), 0o644))
			// Overwrite any stale backup so the rename succeeds both times.
			_ = os.Remove(legacy + ".bak")
			require.NoError(t, ledger.MigrateLegacy(legacy))
		}

		records, err := ledger.All()
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}
