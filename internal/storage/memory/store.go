// Package memory is an in-process record store for tests and the memory
// data backend. Nothing is persisted.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"cashbook/internal/core"
	"cashbook/internal/storage"

	"github.com/google/uuid"
)

type Store struct {
	mu           sync.Mutex
	accounts     map[string]core.Account
	categories   map[string]core.Category
	transactions map[string]core.Transaction
	budgets      map[string]core.Budget
	rules        map[string]core.RecurringRule
	rates        map[rateKey]core.FxRate
}

type rateKey struct {
	owner        string
	base, target core.CurrencyCode
}

var _ storage.Store = (*Store)(nil)
var _ storage.RecurringPoster = (*Store)(nil)

// New returns an empty store holding the given global categories.
func New(globals ...core.Category) *Store {
	s := &Store{
		accounts:     make(map[string]core.Account),
		categories:   make(map[string]core.Category),
		transactions: make(map[string]core.Transaction),
		budgets:      make(map[string]core.Budget),
		rules:        make(map[string]core.RecurringRule),
		rates:        make(map[rateKey]core.FxRate),
	}
	for _, c := range globals {
		c.OwnerID = ""
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		s.categories[c.ID] = c
	}
	return s
}

// NewFromFile seeds global categories from a file of "name,kind" lines.
// Blank lines and lines starting with # are ignored; a missing kind means
// expense. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	var cats []core.Category
	seen := map[string]bool{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, kindStr, _ := strings.Cut(line, ",")
		name = strings.TrimSpace(name)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		kind := core.Expense
		if strings.TrimSpace(kindStr) != "" {
			if kind, err = core.ParseKind(kindStr); err != nil {
				return nil, fmt.Errorf("seed category %q: %w", name, err)
			}
		}
		seen[strings.ToLower(name)] = true
		cats = append(cats, core.Category{ID: strings.ToLower(name), Name: name, Kind: kind})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return New(cats...), nil
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("account %s already exists", a.ID)
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) ListAccounts(_ context.Context, ownerID string) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Account
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; ok {
		return fmt.Errorf("category %s already exists", c.ID)
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) ListCategories(_ context.Context, ownerID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.categories {
		if c.Global() || c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// visible reports whether a category id resolves for owner. Callers hold mu.
func (s *Store) visible(ownerID string) func(string) bool {
	return func(id string) bool {
		c, ok := s.categories[id]
		return ok && (c.Global() || c.OwnerID == ownerID)
	}
}

func (s *Store) resolve(ownerID string, ref core.CategoryRef) core.CategoryRef {
	if ref.IsNone() {
		return ref
	}
	raw := ref.RawID()
	return core.ResolveCategoryRef(&raw, s.visible(ownerID))
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTransaction(tx)
}

func (s *Store) insertTransaction(tx core.Transaction) error {
	if _, ok := s.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	s.transactions[tx.ID] = tx
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok || tx.OwnerID != ownerID {
		return fmt.Errorf("delete transaction: %w", core.ErrNotFound)
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, ownerID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.transactions {
		if tx.OwnerID != ownerID {
			continue
		}
		tx.Category = s.resolve(ownerID, tx.Category)
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.budgets {
		if existing.Key() == b.Key() {
			return fmt.Errorf("create budget %s: %w", b.Month.MonthKey(), core.ErrDuplicateBudget)
		}
	}
	if _, ok := s.budgets[b.ID]; ok {
		return fmt.Errorf("budget %s already exists", b.ID)
	}
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.budgets[b.ID]
	if !ok || existing.OwnerID != b.OwnerID {
		return fmt.Errorf("update budget: %w", core.ErrNotFound)
	}
	existing.Limit = b.Limit
	existing.Currency = b.Currency
	s.budgets[b.ID] = existing
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok || b.OwnerID != ownerID {
		return fmt.Errorf("delete budget: %w", core.ErrNotFound)
	}
	delete(s.budgets, id)
	return nil
}

func (s *Store) GetBudget(_ context.Context, ownerID, id string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok || b.OwnerID != ownerID {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	return b, nil
}

func (s *Store) ListBudgets(_ context.Context, ownerID string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Month.Equal(out[j].Month) {
			return out[i].Month.After(out[j].Month)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateRule(_ context.Context, r core.RecurringRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.ID]; ok {
		return fmt.Errorf("recurring rule %s already exists", r.ID)
	}
	if r.AnchorDate.IsZero() {
		r.AnchorDate = r.NextRunDate
	}
	s.rules[r.ID] = r
	return nil
}

func (s *Store) GetRule(_ context.Context, ownerID, id string) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok || r.OwnerID != ownerID {
		return core.RecurringRule{}, fmt.Errorf("recurring rule %s: %w", id, core.ErrNotFound)
	}
	r.Category = s.resolve(ownerID, r.Category)
	return r, nil
}

func (s *Store) ListRules(_ context.Context, ownerID string) ([]core.RecurringRule, error) {
	return s.listRules(func(r core.RecurringRule) bool { return r.OwnerID == ownerID }), nil
}

func (s *Store) ListDueRules(_ context.Context, ref core.Date) ([]core.RecurringRule, error) {
	return s.listRules(func(r core.RecurringRule) bool { return !r.NextRunDate.After(ref) }), nil
}

func (s *Store) listRules(keep func(core.RecurringRule) bool) []core.RecurringRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringRule
	for _, r := range s.rules {
		if keep(r) {
			r.Category = s.resolve(r.OwnerID, r.Category)
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OwnerID != out[j].OwnerID {
			return out[i].OwnerID < out[j].OwnerID
		}
		if !out[i].NextRunDate.Equal(out[j].NextRunDate) {
			return out[i].NextRunDate.Before(out[j].NextRunDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) AdvanceRule(_ context.Context, advanced core.RecurringRule, expected core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advance(advanced, expected)
}

func (s *Store) advance(advanced core.RecurringRule, expected core.Date) error {
	r, ok := s.rules[advanced.ID]
	if !ok || r.OwnerID != advanced.OwnerID || !r.NextRunDate.Equal(expected) {
		return fmt.Errorf("rule %s expected at %s: %w", advanced.ID, expected, core.ErrStaleRule)
	}
	r.NextRunDate = advanced.NextRunDate
	r.AnchorDate = advanced.AnchorDate
	s.rules[r.ID] = r
	return nil
}

// PostRecurring stores tx and advances the rule under one lock.
func (s *Store) PostRecurring(_ context.Context, tx core.Transaction, advanced core.RecurringRule, expected core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	if err := s.advance(advanced, expected); err != nil {
		return err
	}
	return s.insertTransaction(tx)
}

func (s *Store) UpsertRate(_ context.Context, r core.FxRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[rateKey{r.OwnerID, r.Base, r.Target}] = r
	return nil
}

func (s *Store) DeleteRate(_ context.Context, ownerID string, base, target core.CurrencyCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := rateKey{ownerID, base, target}
	if _, ok := s.rates[k]; !ok {
		return fmt.Errorf("delete fx rate: %w", core.ErrNotFound)
	}
	delete(s.rates, k)
	return nil
}

func (s *Store) ListRates(_ context.Context, ownerID string) ([]core.FxRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.FxRate
	for k, r := range s.rates {
		if k.owner == ownerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Base != out[j].Base {
			return out[i].Base < out[j].Base
		}
		return out[i].Target < out[j].Target
	})
	return out, nil
}
