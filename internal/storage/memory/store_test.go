package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cashbook/internal/storage"
	"cashbook/internal/storage/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestNewFromFileSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFromFile(filepath.Join(dir, "missing.txt"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	cats, _ := s.ListCategories(context.Background(), "u1")
	if len(cats) != 0 {
		t.Fatalf("expected no categories, got %v", cats)
	}

	path := filepath.Join(dir, "seed_categories.txt")
	content := "# header\nFood\nSalary, income\nfood\n\nRent,expense\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("NewFromFile() error = %v", err)
	}
	cats, _ = s.ListCategories(context.Background(), "anyone")
	if len(cats) != 3 {
		t.Fatalf("expected 3 deduplicated categories, got %v", cats)
	}
	for _, c := range cats {
		if c.Name == "Salary" && c.Kind != "income" {
			t.Fatalf("salary kind = %s", c.Kind)
		}
		if !c.Global() {
			t.Fatalf("seeded categories must be global: %+v", c)
		}
	}

	if err := os.WriteFile(path, []byte("Bonus,transfer\n"), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := NewFromFile(path); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
