// Package memory keeps exported rows in process. It backs the notify worker
// when no spreadsheet is configured, and the tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"cashbook/internal/core"
	"cashbook/internal/sheets"
)

type Store struct {
	mu       sync.Mutex
	alerts   []sheets.AlertRow
	postings []sheets.PostingRow
	rates    []core.FxRate
}

var (
	_ sheets.Exporter   = (*Store)(nil)
	_ sheets.RateReader = (*Store)(nil)
)

func New(rates ...core.FxRate) *Store {
	return &Store{rates: rates}
}

// AppendAlert stores the row and returns a synthetic row reference.
func (s *Store) AppendAlert(_ context.Context, a sheets.AlertRow) (string, error) {
	if a.BudgetID == "" {
		return "", fmt.Errorf("alert without budget id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return fmt.Sprintf("mem:alerts:%d", len(s.alerts)), nil
}

func (s *Store) AppendPosting(_ context.Context, p sheets.PostingRow) (string, error) {
	if p.TransactionID == "" {
		return "", fmt.Errorf("posting without transaction id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postings = append(s.postings, p)
	return fmt.Sprintf("mem:postings:%d", len(s.postings)), nil
}

// ReadRates returns the seeded rates stamped with ownerID.
func (s *Store) ReadRates(_ context.Context, ownerID string) ([]core.FxRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.FxRate, len(s.rates))
	for i, r := range s.rates {
		r.OwnerID = ownerID
		out[i] = r
	}
	return out, nil
}

func (s *Store) Alerts() []sheets.AlertRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.AlertRow(nil), s.alerts...)
}

func (s *Store) Postings() []sheets.PostingRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.PostingRow(nil), s.postings...)
}
