package ingest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/killmongerinheret/vinted-watch/internal/ingest"
	"github.com/killmongerinheret/vinted-watch/internal/model"
)

type fakeStore struct {
	known      map[string]bool
	saved      []model.Item
	watermarks map[int64]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{known: map[string]bool{}, watermarks: map[int64]int64{}}
}

func (f *fakeStore) IsItemKnown(ctx context.Context, id string) (bool, error) {
	return f.known[id], nil
}

func (f *fakeStore) SaveItem(ctx context.Context, it model.Item) (model.Item, error) {
	it.FoundTS = it.PublishedTS
	f.known[it.ID] = true
	f.saved = append(f.saved, it)
	return it, nil
}

func (f *fakeStore) EnforceItemCap(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeStore) AdvanceWatermark(ctx context.Context, queryID, publishedTS int64) error {
	if cur, ok := f.watermarks[queryID]; !ok || publishedTS > cur {
		f.watermarks[queryID] = publishedTS
	}
	return nil
}

func (f *fakeStore) Queries(ctx context.Context) ([]model.Query, error) {
	return []model.Query{{ID: 1, ThreadID: nil}}, nil
}

func TestProcessSkipsKnownItems(t *testing.T) {
	store := newFakeStore()
	store.known["existing"] = true

	notifier := make(chan ingest.Notification, 10)
	p := &ingest.Pipeline{Store: store, Notifier: notifier}

	batches := make(chan ingest.Batch, 1)
	batches <- ingest.Batch{QueryID: 1, Items: []ingest.Candidate{{ID: "existing", Title: "Old"}}}
	close(batches)

	p.Run(context.Background(), batches)

	require.Len(t, store.saved, 0)
	require.Len(t, notifier, 0)
}

func TestProcessNotifiesOldestFirst(t *testing.T) {
	store := newFakeStore()
	notifier := make(chan ingest.Notification, 10)
	p := &ingest.Pipeline{Store: store, Notifier: notifier}

	batches := make(chan ingest.Batch, 1)
	batches <- ingest.Batch{QueryID: 1, Items: []ingest.Candidate{
		{ID: "newer", Title: "Newer", PublishedTS: 200, Price: "10.00", Currency: "EUR"},
		{ID: "older", Title: "Older", PublishedTS: 100, Price: "5.00", Currency: "EUR"},
	}}
	close(batches)

	p.Run(context.Background(), batches)

	require.Len(t, store.saved, 2)
	require.Equal(t, "older", store.saved[0].ID)
	require.Equal(t, "newer", store.saved[1].ID)

	first := <-notifier
	require.Contains(t, first.Text, "Older")
}

func TestNotificationSkippedOnPersistFailure(t *testing.T) {
	store := newFakeStore()
	notifier := make(chan ingest.Notification, 10)
	p := &ingest.Pipeline{Store: &failingStore{fakeStore: store}, Notifier: notifier}

	batches := make(chan ingest.Batch, 1)
	batches <- ingest.Batch{QueryID: 1, Items: []ingest.Candidate{{ID: "x", Title: "X"}}}
	close(batches)

	p.Run(context.Background(), batches)

	require.Len(t, notifier, 0)
}

type failingStore struct {
	*fakeStore
}

func (f *failingStore) SaveItem(ctx context.Context, it model.Item) (model.Item, error) {
	return model.Item{}, assertPersistError{}
}

type assertPersistError struct{}

func (assertPersistError) Error() string { return "persist failed" }
