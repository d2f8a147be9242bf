package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/killmongerinheret/vinted-watch/internal/model"
	"github.com/killmongerinheret/vinted-watch/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddQueryIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.AddQuery(ctx, model.Query{URL: "https://vinted.fr/catalog?search_text=shoes&order=newest_first"})
	require.NoError(t, err)

	id2, err := s.AddQuery(ctx, model.Query{URL: "https://vinted.fr/catalog?search_text=shoes&order=newest_first"})
	require.NoError(t, err)

	require.Equal(t, id1, id2)

	all, err := s.Queries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestItemDedupeAndWatermark(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	qid, err := s.AddQuery(ctx, model.Query{URL: "https://vinted.fr/catalog?search_text=boots"})
	require.NoError(t, err)

	known, err := s.IsItemKnown(ctx, "A")
	require.NoError(t, err)
	require.False(t, known)

	_, err = s.SaveItem(ctx, model.Item{ID: "A", Title: "Boot", Price: "12.50", Currency: "EUR", PublishedTS: 1700000000, QueryID: qid})
	require.NoError(t, err)

	known, err = s.IsItemKnown(ctx, "A")
	require.NoError(t, err)
	require.True(t, known)

	require.NoError(t, s.AdvanceWatermark(ctx, qid, 1700000000))
	require.NoError(t, s.AdvanceWatermark(ctx, qid, 1600000000)) // must not regress

	q, err := s.QueryByURL(ctx, "https://vinted.fr/catalog?search_text=boots")
	require.NoError(t, err)
	require.EqualValues(t, 1700000000, q.LastItemTS)
}

func TestAllowlistRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddCountry(ctx, "de"))
	require.NoError(t, s.AddCountry(ctx, "DE")) // idempotent regardless of case
	require.NoError(t, s.AddCountry(ctx, "fr"))

	list, err := s.Allowlist(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"DE", "FR"}, list)

	require.NoError(t, s.RemoveCountry(ctx, "fr"))
	list, err = s.Allowlist(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"DE"}, list)

	require.NoError(t, s.ClearAllowlist(ctx))
	list, err = s.Allowlist(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestParametersUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Parameter(ctx, model.ParamItemsPerQuery)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetParameter(ctx, model.ParamItemsPerQuery, "20"))
	require.NoError(t, s.SetParameter(ctx, model.ParamItemsPerQuery, "30"))

	v, ok, err := s.Parameter(ctx, model.ParamItemsPerQuery)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "30", v)
}
