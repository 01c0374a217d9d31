package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"cashbook/internal/core"
	"cashbook/internal/storage"
	"cashbook/internal/storage/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecimal(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "cashbook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepositoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store { return newRepo(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cashbook.db")
	repo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	require.NoError(t, storage.RunMigrations(path))
	version, dirty, err := storage.MigrationVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestListRatesSkipsInvalidRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cashbook.db")
	repo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.UpsertRate(ctx, core.FxRate{OwnerID: "u1", Base: "USD", Target: "SSP", Rate: mustDecimal("6000")}))
	// UpsertRate does not validate; the reader does
	require.NoError(t, repo.UpsertRate(ctx, core.FxRate{OwnerID: "u1", Base: "KES", Target: "SSP", Rate: mustDecimal("0")}))

	rates, err := repo.ListRates(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, core.CurrencyCode("USD"), rates[0].Base)
}
