// Package orchestrator brings the system up, scaling
// the worker fleet to match saved queries, and keeping it reconfigurable
// at runtime.
package orchestrator

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/killmongerinheret/vinted-watch/internal/catalog"
	"github.com/killmongerinheret/vinted-watch/internal/config"
	"github.com/killmongerinheret/vinted-watch/internal/governor"
	"github.com/killmongerinheret/vinted-watch/internal/ingest"
	"github.com/killmongerinheret/vinted-watch/internal/model"
	"github.com/killmongerinheret/vinted-watch/internal/notify"
	"github.com/killmongerinheret/vinted-watch/internal/proxypool"
	"github.com/killmongerinheret/vinted-watch/internal/store"
	"github.com/killmongerinheret/vinted-watch/internal/tokenpool"
	"github.com/killmongerinheret/vinted-watch/internal/worker"
)

// priorityWorkerFanout: priority queries spawn this many staggered
// workers each, offset 0s/7s/14s so their fixed 20s scans interleave.
const priorityWorkerFanout = 3

var priorityStartDelays = []time.Duration{0, 7 * time.Second, 14 * time.Second}

// ingestTick is how often the ingestion forwarder pushes a live stats
// event to Broadcast; batches themselves are forwarded as they arrive.
const ingestTick = 100 * time.Millisecond

// configRefreshInterval is how often the monitor task writes the catalog
// request counter to the store's vinted_api_requests parameter.
const configRefreshInterval = 30 * time.Second

// storeConfig adapts the store's admin-mutable parameters to
// worker.ConfigSource, re-reading on every call so changes made through
// the web admin surface's /update_config apply on the worker's next
// cycle without a restart.
// config.Manager's file-backed defaults are the fallback when a
// parameter row is absent or fails to parse.
type storeConfig struct {
	store   *store.Store
	manager *config.Manager
}

func (c storeConfig) QueryRefreshDelay() time.Duration {
	if v, ok, err := c.store.Parameter(context.Background(), model.ParamQueryRefreshDelay); err == nil && ok {
		if n, perr := strconv.Atoi(v); perr == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return c.manager.Get().QueryRefreshDelay
}

func (c storeConfig) ItemsPerQuery() int {
	if v, ok, err := c.store.Parameter(context.Background(), model.ParamItemsPerQuery); err == nil && ok {
		if n, perr := strconv.Atoi(v); perr == nil && n > 0 {
			return n
		}
	}
	return c.manager.Get().ItemsPerQuery
}

// Orchestrator owns the worker fleet and the supporting pipelines.
type Orchestrator struct {
	Store    *store.Store
	Config   *config.Manager
	Proxies  *proxypool.Pool
	Tokens   *tokenpool.Pool
	Governor *governor.Governor
	Cache    interface {
		MightBeSeen(ctx context.Context, itemID string) bool
		MarkSeen(ctx context.Context, itemID string)
	}

	// Notifier is started/stopped alongside the fleet. It must have been
	// constructed against Messages (or Messages left nil, in which case
	// Start allocates one and the caller should not have built a
	// Notifier yet).
	Notifier *notify.Controller
	Messages chan notify.Message
	WebHost  string

	// Broadcast, when set, receives a live stats event on every
	// ingestion tick for the dashboard websocket.
	Broadcast func(event string, payload any)

	items chan worker.Batch

	cancelWorkers context.CancelFunc
	wg            sync.WaitGroup
	cron          *cron.Cron
}

// Start runs the full startup sequence and returns once the
// fleet is running; call Shutdown to stop everything.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.Store.Migrate(ctx); err != nil {
		return err
	}

	queries, err := o.Store.Queries(ctx)
	if err != nil {
		return err
	}

	workerCount := 0
	for _, q := range queries {
		if q.Priority {
			workerCount += priorityWorkerFanout
		} else {
			workerCount++
		}
	}

	if err := o.Tokens.PreWarm(ctx, workerCount); err != nil {
		log.Printf("⚠️ orchestrator: pre-warm reported errors: %v", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	o.cancelWorkers = cancel

	o.items = make(chan worker.Batch, 256)
	if o.Messages == nil {
		o.Messages = make(chan notify.Message, 256)
	}

	o.spawnWorkers(workerCtx, queries)
	o.startIngestion(workerCtx)
	o.startHousekeeping(workerCtx)

	if o.Notifier != nil {
		o.Notifier.Start()
	}

	log.Printf("orchestrator: started %d workers across %d queries", workerCount, len(queries))
	return nil
}

func (o *Orchestrator) spawnWorkers(ctx context.Context, queries []model.Query) {
	index := 0
	cfg := storeConfig{store: o.Store, manager: o.Config}

	for _, q := range queries {
		if q.Priority {
			for i := 0; i < priorityWorkerFanout; i++ {
				w := &worker.Worker{
					Index:      index,
					Query:      q,
					Tokens:     o.Tokens,
					Config:     cfg,
					Governor:   o.Governor,
					Items:      o.items,
					StartDelay: priorityStartDelays[i],
				}
				o.wg.Add(1)
				go func() {
					defer o.wg.Done()
					w.Run(ctx)
				}()
				index++
			}
			continue
		}

		w := &worker.Worker{
			Index:    index,
			Query:    q,
			Tokens:   o.Tokens,
			Config:   cfg,
			Governor: o.Governor,
			Items:    o.items,
		}
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w.Run(ctx)
		}()
		index++
	}
}

func (o *Orchestrator) startIngestion(ctx context.Context) {
	pipeline := &ingest.Pipeline{
		Store:    o.Store,
		Cache:    o.Cache,
		Notifier: ingestNotifierAdapter(o.Messages),
		Host:     o.WebHost,
	}

	batches := make(chan ingest.Batch, 256)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(ingestTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(batches)
				return
			case b := <-o.items:
				batches <- toIngestBatch(b)
			case <-ticker.C:
				if o.Broadcast != nil {
					o.Broadcast("stats", map[string]any{
						"api_requests": catalog.RequestCount(),
					})
				}
			}
		}
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		pipeline.Run(ctx, batches)
	}()
}

func toIngestBatch(b worker.Batch) ingest.Batch {
	items := make([]ingest.Candidate, len(b.Items))
	for i, it := range b.Items {
		items[i] = ingest.Candidate{
			ID:          it.ID,
			Title:       it.Title,
			Price:       it.Price,
			Currency:    it.Currency,
			PublishedTS: it.PublishedTS,
			PhotoURL:    it.PhotoURL,
			BrandTitle:  it.BrandTitle,
			SizeTitle:   it.SizeTitle,
		}
	}
	return ingest.Batch{Items: items, QueryID: b.QueryID}
}

func (o *Orchestrator) startHousekeeping(ctx context.Context) {
	o.cron = cron.New()
	o.cron.AddFunc("@every 30m", func() {
		o.Proxies.Recheck(ctx, o.Config.Get().ProxyRotationInterval)
		now := strconv.FormatInt(model.Now(), 10)
		if err := o.Store.SetParameter(ctx, model.ParamLastProxyCheckTime, now); err != nil {
			log.Printf("⚠️ orchestrator: failed to record last_proxy_check_time: %v", err)
		}
	})
	o.cron.Start()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(configRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				count := strconv.FormatInt(catalog.RequestCount(), 10)
				if err := o.Store.SetParameter(ctx, model.ParamVintedAPIRequests, count); err != nil {
					log.Printf("⚠️ orchestrator: failed to record vinted_api_requests: %v", err)
				}
			}
		}
	}()
}

// Shutdown stops every worker and the notifier. Messages still queued
// for the notifier are not sent.
func (o *Orchestrator) Shutdown() {
	if o.cancelWorkers != nil {
		o.cancelWorkers()
	}
	if o.cron != nil {
		o.cron.Stop()
	}
	if o.Notifier != nil {
		o.Notifier.Stop()
	}
	o.wg.Wait()
}

func ingestNotifierAdapter(ch chan<- notify.Message) chan<- ingest.Notification {
	out := make(chan ingest.Notification)
	go func() {
		for n := range out {
			ch <- notify.FromNotification(n)
		}
	}()
	return out
}
