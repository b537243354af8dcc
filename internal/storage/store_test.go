package storage

import (
	"path/filepath"
	"testing"

	"github.com/raine/sellsmart-bot/internal/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAnalysisCache(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetAnalysis("missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	draft := &listing.Draft{
		Category:    listing.CategoryObject,
		Title:       "Ceramic vase",
		Description: "Hand made",
		PriceRange:  "20€ - 30€",
		Hashtags:    []string{"vase", "decor"},
	}
	require.NoError(t, store.SetAnalysis("abc", draft))

	got, err = store.GetAnalysis("abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ceramic vase", got.Title)
	assert.Equal(t, []string{"vase", "decor"}, got.Hashtags)
	assert.Equal(t, []string{}, got.SuggestedMarketplaces)

	draft.Title = "Blue ceramic vase"
	require.NoError(t, store.SetAnalysis("abc", draft))
	got, err = store.GetAnalysis("abc")
	require.NoError(t, err)
	assert.Equal(t, "Blue ceramic vase", got.Title)
}

func TestAllowedUsers(t *testing.T) {
	store := newTestStore(t)

	allowed, err := store.IsUserAllowed(42)
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, store.AddAllowedUser(42, 1))
	require.NoError(t, store.AddAllowedUser(43, 1))

	allowed, err = store.IsUserAllowed(42)
	require.NoError(t, err)
	assert.True(t, allowed)

	users, err := store.GetAllowedUsers()
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(1), users[0].AddedBy)

	require.NoError(t, store.RemoveAllowedUser(42))
	allowed, err = store.IsUserAllowed(42)
	require.NoError(t, err)
	assert.False(t, allowed)

	users, err = store.GetAllowedUsers()
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(43), users[0].TelegramID)
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.AddAllowedUser(7, 1))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	allowed, err := store.IsUserAllowed(7)
	require.NoError(t, err)
	assert.True(t, allowed)
}
