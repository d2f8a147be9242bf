// Package ingest converts candidate items into
// persisted records and outbound notifications exactly once.
package ingest

import (
	"context"
	"fmt"
	"html"
	"log"
	"time"

	"github.com/killmongerinheret/vinted-watch/internal/model"
)

// latencyCutoff: a published_ts older than this at discovery time omits
// the latency suffix entirely.
const latencyCutoff = time.Hour

// maxBatchesPerInvocation bounds one drain call so the pipeline yields
// back to its caller periodically instead of running forever.
const maxBatchesPerInvocation = 100

// Batch mirrors worker.Batch without importing the worker package, to
// keep ingest decoupled from the worker's internals.
type Batch struct {
	Items   []Candidate
	QueryID int64
}

// Candidate is the subset of catalog.Item the pipeline needs.
type Candidate struct {
	ID          string
	Title       string
	Price       string
	Currency    string
	PublishedTS int64
	PhotoURL    string
	BrandTitle  string
	SizeTitle   *string
}

// Notification is what gets enqueued to the notifier.
type Notification struct {
	Text       string
	URL        string
	ButtonText string
	ThreadID   *int64
	PhotoURL   string
}

// Store is the subset of store.Store the pipeline needs.
type Store interface {
	IsItemKnown(ctx context.Context, id string) (bool, error)
	SaveItem(ctx context.Context, it model.Item) (model.Item, error)
	EnforceItemCap(ctx context.Context) (int64, error)
	AdvanceWatermark(ctx context.Context, queryID, publishedTS int64) error
	Queries(ctx context.Context) ([]model.Query, error)
}

// SeenCache is the optional fast-path consulted before the store; nil
// disables it.
type SeenCache interface {
	MightBeSeen(ctx context.Context, itemID string) bool
	MarkSeen(ctx context.Context, itemID string)
}

// Pipeline drains a channel of Batches, persisting and notifying.
type Pipeline struct {
	Store    Store
	Cache    SeenCache
	Notifier chan<- Notification
	Host     string // locale host used to build item URLs
}

// Run drains the batches channel until it is closed or ctx is
// cancelled. Each drain call processes up to maxBatchesPerInvocation
// batches against one cached query list, which is re-read on the next
// drain call.
func (p *Pipeline) Run(ctx context.Context, batches <-chan Batch) {
	for {
		select {
		case <-ctx.Done():
			return
		case first, ok := <-batches:
			if !ok {
				return
			}
			p.drain(ctx, batches, first)
		}
	}
}

func (p *Pipeline) drain(ctx context.Context, batches <-chan Batch, first Batch) {
	queries, err := p.Store.Queries(ctx)
	if err != nil {
		log.Printf("⚠️ ingest: failed to cache query list: %v", err)
		queries = nil
	}
	threadIDs := make(map[int64]*int64, len(queries))
	for _, q := range queries {
		threadIDs[q.ID] = q.ThreadID
	}

	p.process(ctx, first, threadIDs)

	for i := 1; i < maxBatchesPerInvocation; i++ {
		select {
		case b, ok := <-batches:
			if !ok {
				return
			}
			p.process(ctx, b, threadIDs)
		default:
			return
		}
	}
}

// process handles one batch in reverse of the newest-first API order,
// so older items notify first.
func (p *Pipeline) process(ctx context.Context, b Batch, threadIDs map[int64]*int64) {
	for i := len(b.Items) - 1; i >= 0; i-- {
		p.processItem(ctx, b.Items[i], b.QueryID, threadIDs[b.QueryID])
	}
}

func (p *Pipeline) processItem(ctx context.Context, c Candidate, queryID int64, threadID *int64) {
	if p.Cache != nil && p.Cache.MightBeSeen(ctx, c.ID) {
		known, err := p.Store.IsItemKnown(ctx, c.ID)
		if err == nil && known {
			return
		}
	} else {
		known, err := p.Store.IsItemKnown(ctx, c.ID)
		if err != nil {
			log.Printf("⚠️ ingest: dedupe check failed for item %s: %v", c.ID, err)
		} else if known {
			return
		}
	}

	if n, err := p.Store.EnforceItemCap(ctx); err != nil {
		log.Printf("⚠️ ingest: item cap enforcement failed: %v", err)
	} else if n > 0 {
		log.Printf("ingest: trimmed %d items to stay under the soft cap", n)
	}

	item := model.Item{
		ID:          c.ID,
		Title:       c.Title,
		Price:       c.Price,
		Currency:    c.Currency,
		PublishedTS: c.PublishedTS,
		PhotoURL:    c.PhotoURL,
		BrandTitle:  c.BrandTitle,
		QueryID:     queryID,
		SizeTitle:   c.SizeTitle,
	}

	saved, err := p.Store.SaveItem(ctx, item)
	if err != nil {
		log.Printf("⚠️ ingest: persist failed for item %s, skipping notification: %v", c.ID, err)
		return
	}

	if p.Cache != nil {
		p.Cache.MarkSeen(ctx, c.ID)
	}

	if err := p.Store.AdvanceWatermark(ctx, queryID, saved.PublishedTS); err != nil {
		log.Printf("⚠️ ingest: watermark advance failed for query %d: %v", queryID, err)
	}

	host := p.Host
	if host == "" {
		host = "www.vinted.de"
	}

	notification := Notification{
		Text:       formatNotification(saved, host),
		URL:        saved.URL(host),
		ButtonText: "Open Vinted",
		ThreadID:   threadID,
		PhotoURL:   saved.PhotoURL,
	}

	if p.Notifier != nil {
		p.Notifier <- notification
	}
}

// formatNotification builds the HTML message body:
// title, price+currency, size (if present), brand, an invisible image
// hyperlink, and an optional discovery-latency suffix on the price.
func formatNotification(it model.Item, host string) string {
	price := "💶" + it.Price + " " + it.Currency
	if suffix := latencySuffix(it); suffix != "" {
		price += " (" + suffix + ")"
	}

	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(it.Title), price)
	if it.SizeTitle != nil && *it.SizeTitle != "" {
		text += "\n" + html.EscapeString(*it.SizeTitle)
	}
	if it.BrandTitle != "" {
		text += "\n" + html.EscapeString(it.BrandTitle)
	}
	if it.PhotoURL != "" {
		text = fmt.Sprintf(`<a href="%s">&#8203;</a>`, html.EscapeString(it.PhotoURL)) + text
	}
	return text
}

// latencySuffix returns "+<h|m|s>" when published_ts is present,
// non-negative relative to found_ts, and within one hour; otherwise "".
func latencySuffix(it model.Item) string {
	if it.PublishedTS <= 0 {
		return ""
	}
	delta := it.FoundTS - it.PublishedTS
	if delta < 0 {
		return ""
	}
	d := time.Duration(delta) * time.Second
	if d >= latencyCutoff {
		return ""
	}

	switch {
	case d >= time.Minute:
		return fmt.Sprintf("+%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("+%ds", int(d.Seconds()))
	}
}
