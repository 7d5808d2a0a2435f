package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/foliomail/internal/common"
	"github.com/ternarybob/foliomail/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	db, err := NewBadgerDB(common.GetLogger(), &common.BadgerConfig{
		Path: t.TempDir() + "/badger",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestPortfolioStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewPortfolioStore(newTestDB(t), common.GetLogger())

	portfolio := models.Portfolio{
		Email: "user@example.com",
		Accounts: []models.Account{
			{Name: "Cash", Tickers: []string{"NVDA", "AAPL"}},
		},
	}

	require.NoError(t, store.Put(ctx, portfolio))

	got, err := store.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, portfolio.Email, got.Email)
	assert.Equal(t, []string{"NVDA", "AAPL"}, got.Tickers())

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.Delete(ctx, "user@example.com"))

	_, err = store.Get(ctx, "user@example.com")
	assert.True(t, errors.Is(err, ErrPortfolioNotFound))
}

func TestPortfolioStorePutRequiresEmail(t *testing.T) {
	store := NewPortfolioStore(newTestDB(t), common.GetLogger())
	err := store.Put(context.Background(), models.Portfolio{})
	assert.Error(t, err)
}

func TestPortfolioStoreSeed(t *testing.T) {
	ctx := context.Background()
	store := NewPortfolioStore(newTestDB(t), common.GetLogger())

	existing := models.Portfolio{
		Email:    "user@example.com",
		Accounts: []models.Account{{Name: "Cash", Tickers: []string{"VGT"}}},
	}
	require.NoError(t, store.Put(ctx, existing))

	defaults := []models.Portfolio{
		{
			Email:    "user@example.com",
			Accounts: []models.Account{{Name: "Cash", Tickers: []string{"NVDA"}}},
		},
		{
			Email:    "other@example.com",
			Accounts: []models.Account{{Name: "Cash", Tickers: []string{"TSLA"}}},
		},
	}

	require.NoError(t, store.Seed(ctx, defaults))

	// Existing portfolio untouched, missing one inserted
	got, err := store.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"VGT"}, got.Tickers())

	got, err = store.Get(ctx, "other@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"TSLA"}, got.Tickers())
}
