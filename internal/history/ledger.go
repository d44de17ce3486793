// File: internal/history/ledger.go
package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/purib/ipopilot/internal/domain"
	"go.uber.org/zap"
)

// timeLayout is the human readable timestamp written to the ledger file.
const timeLayout = "2006-01-02 15:04:05"

var ledgerHeader = []string{"Name", "Username", "BOID", "Company", "URL", "Bank", "Applied At"}

// Ledger is the append-only CSV record of completed applications. An entry
// is keyed by (Username, Company): once a pair appears, the same offering is
// never applied for again on that account.
//
// Writes are serialized by a mutex; the file itself is not locked, a single
// process owns it.
type Ledger struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewLedger creates a ledger backed by the CSV file at path. The file is
// created lazily on the first Record call.
func NewLedger(path string, logger *zap.Logger) *Ledger {
	return &Ledger{
		path:   path,
		logger: logger.Named("history"),
	}
}

// IsCompleted reports whether an application for company is already recorded
// for username. A missing ledger file means nothing is completed yet.
func (l *Ledger) IsCompleted(username, company string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.readAll()
	if err != nil {
		return false, err
	}
	for _, rec := range records {
		if rec.Username == username && rec.Company == company {
			return true, nil
		}
	}
	return false, nil
}

// Record appends rec to the ledger, writing the header first when the file
// is new. It does not deduplicate; callers check IsCompleted first.
func (l *Ledger) Record(rec domain.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	writeHeader := true
	if info, err := os.Stat(l.path); err == nil && info.Size() > 0 {
		writeHeader = false
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(ledgerHeader); err != nil {
			return fmt.Errorf("failed to write history header: %w", err)
		}
	}

	appliedAt := rec.AppliedAt
	if appliedAt.IsZero() {
		appliedAt = time.Now()
	}
	row := []string{
		rec.Name,
		rec.Username,
		rec.BOID,
		rec.Company,
		rec.URL,
		rec.Bank,
		appliedAt.Format(timeLayout),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to write history row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush history file: %w", err)
	}

	l.logger.Info("Recorded completed application",
		zap.String("username", rec.Username),
		zap.String("company", rec.Company),
		zap.String("bank", rec.Bank))
	return nil
}

// All returns every recorded application in file order.
func (l *Ledger) All() ([]domain.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readAll()
}

func (l *Ledger) readAll() ([]domain.Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var records []domain.Record
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse history file: %w", err)
		}
		if first {
			first = false
			if len(row) > 0 && strings.EqualFold(strings.TrimPrefix(row[0], "\uFEFF"), "Name") {
				continue
			}
		}
		records = append(records, rowToRecord(row))
	}
	return records, nil
}

func rowToRecord(row []string) domain.Record {
	get := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	rec := domain.Record{
		Name:     get(0),
		Username: get(1),
		BOID:     get(2),
		Company:  get(3),
		URL:      get(4),
		Bank:     get(5),
	}
	if ts, err := time.ParseInLocation(timeLayout, get(6), time.Local); err == nil {
		rec.AppliedAt = ts
	}
	return rec
}
