package webadmin_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/killmongerinheret/vinted-watch/internal/governor"
	"github.com/killmongerinheret/vinted-watch/internal/model"
	"github.com/killmongerinheret/vinted-watch/internal/webadmin"
)

type fakeStore struct {
	queries []model.Query
}

func (f *fakeStore) Queries(ctx context.Context) ([]model.Query, error) { return f.queries, nil }
func (f *fakeStore) AddQuery(ctx context.Context, q model.Query) (int64, error) {
	q.ID = int64(len(f.queries) + 1)
	f.queries = append(f.queries, q)
	return q.ID, nil
}
func (f *fakeStore) RemoveQuery(ctx context.Context, id int64) error { return nil }
func (f *fakeStore) RemoveAllQueries(ctx context.Context) error      { f.queries = nil; return nil }
func (f *fakeStore) EditQuery(ctx context.Context, id int64, name string, threadID *int64, priority bool) error {
	return nil
}
func (f *fakeStore) UpdateThreadID(ctx context.Context, id int64, threadID *int64) error { return nil }
func (f *fakeStore) ClearAllItems(ctx context.Context) error                             { return nil }
func (f *fakeStore) ItemsForQuery(ctx context.Context, queryID int64, limit int) ([]model.Item, error) {
	return nil, nil
}
func (f *fakeStore) Parameters(ctx context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}
func (f *fakeStore) SetParameter(ctx context.Context, key, value string) error { return nil }
func (f *fakeStore) Allowlist(ctx context.Context) ([]string, error)           { return nil, nil }
func (f *fakeStore) AddCountry(ctx context.Context, code string) error         { return nil }
func (f *fakeStore) RemoveCountry(ctx context.Context, code string) error      { return nil }
func (f *fakeStore) ClearAllowlist(ctx context.Context) error                  { return nil }

type fakeGovernor struct{}

func (fakeGovernor) Snapshot() governor.Snapshot {
	return governor.Snapshot{Error401: 1, LastRedeploy: time.Time{}}
}

func TestAddQueryValidatesURL(t *testing.T) {
	store := &fakeStore{}
	s := webadmin.New(store, fakeGovernor{}, nil, nil, nil, func() string { return "in-memory" })

	body, _ := json.Marshal(map[string]string{"query": "not-a-url"})
	req := httptest.NewRequest(http.MethodPost, "/add_query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddQueryThenList(t *testing.T) {
	store := &fakeStore{}
	s := webadmin.New(store, fakeGovernor{}, nil, nil, nil, func() string { return "in-memory" })

	body, _ := json.Marshal(map[string]string{"query": "https://www.vinted.fr/catalog?search_text=jacket"})
	req := httptest.NewRequest(http.MethodPost, "/add_query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/queries", nil)
	listRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var queries []model.Query
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &queries))
	require.Len(t, queries, 1)
}

func TestAddQueryCanonicalizesURL(t *testing.T) {
	store := &fakeStore{}
	s := webadmin.New(store, fakeGovernor{}, nil, nil, nil, func() string { return "in-memory" })

	body, _ := json.Marshal(map[string]string{
		"query": "https://www.vinted.fr/catalog?search_text=jacket&page=3&time=123&order=price_high_to_low",
	})
	req := httptest.NewRequest(http.MethodPost, "/add_query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, store.queries, 1)
	stored, err := url.Parse(store.queries[0].URL)
	require.NoError(t, err)
	q := stored.Query()
	require.Equal(t, "newest_first", q.Get("order"))
	require.Empty(t, q.Get("page"))
	require.Empty(t, q.Get("time"))
	require.Equal(t, "jacket", q.Get("search_text"))
}

func TestRedeployStatusReflectsGovernorSnapshot(t *testing.T) {
	store := &fakeStore{}
	s := webadmin.New(store, fakeGovernor{}, nil, nil, nil, func() string { return "redis" })

	req := httptest.NewRequest(http.MethodGet, "/redeploy_status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, float64(1), payload["error_401"])
}
