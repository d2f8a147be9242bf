// Package worker runs one long-lived task scanning a single
// saved search at its own cadence.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/killmongerinheret/vinted-watch/internal/catalog"
	"github.com/killmongerinheret/vinted-watch/internal/governor"
	"github.com/killmongerinheret/vinted-watch/internal/model"
	"github.com/killmongerinheret/vinted-watch/internal/tokenpool"
)

// rotationThreshold is the number of successful scans after which a
// session proactively rotates.
const rotationThreshold = 5

// priorityRefreshDelay is fixed at 20s for priority queries regardless
// of the configured query_refresh_delay.
const priorityRefreshDelay = 20 * time.Second

// ConfigSource exposes the live configuration the worker re-reads every
// iteration.
type ConfigSource interface {
	QueryRefreshDelay() time.Duration
	ItemsPerQuery() int
}

// Batch is one scan result handed to the ingestion pipeline.
type Batch struct {
	Items   []catalog.Item
	QueryID int64
}

// TokenPool is the subset of tokenpool.Pool a worker needs.
type TokenPool interface {
	Session(workerIndex int) *tokenpool.Session
	CreateFreshPair(ctx context.Context, workerIndex int) (*tokenpool.Session, error)
}

// Governor is the subset of governor.Governor a worker reports to.
type Governor interface {
	ReportSuccess(ctx context.Context)
	ReportError(ctx context.Context, kind governor.ErrorKind)
	ReportGenericFailure(ctx context.Context)
}

// Worker scans one saved search (model.Query) on its own cadence.
type Worker struct {
	Index      int
	Query      model.Query
	Tokens     TokenPool
	Config     ConfigSource
	Governor   Governor
	Items      chan<- Batch
	StartDelay time.Duration
}

// Run drives the worker's loop until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w.StartDelay > 0 {
		if !sleep(ctx, w.StartDelay) {
			return
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}

		w.iterate(ctx)

		delay := w.refreshDelay()
		if !sleep(ctx, delay) {
			return
		}
	}
}

func (w *Worker) refreshDelay() time.Duration {
	if w.Query.Priority {
		return priorityRefreshDelay
	}
	return w.Config.QueryRefreshDelay()
}

func (w *Worker) iterate(ctx context.Context) {
	sess := w.Tokens.Session(w.Index)

	if sess != nil && sess.ScanCount() >= rotationThreshold {
		fresh, err := w.Tokens.CreateFreshPair(ctx, w.Index)
		if err != nil {
			log.Printf("⚠️ worker[%d]: proactive rotation failed, keeping session: %v", w.Index, err)
			sess.ResetScanCount()
		} else {
			sess = fresh
		}
	} else if sess == nil || !sess.Valid() {
		fresh, err := w.Tokens.CreateFreshPair(ctx, w.Index)
		if err != nil {
			log.Printf("⚠️ worker[%d]: no valid session and fresh pair failed: %v", w.Index, err)
			return
		}
		sess = fresh
	}

	outcome := catalog.Dispatch(sess, w.Query.URL, 1, w.Config.ItemsPerQuery())
	w.handleOutcome(ctx, sess, outcome)
}

func (w *Worker) handleOutcome(ctx context.Context, sess *tokenpool.Session, outcome catalog.Outcome) {
	switch outcome.Kind {
	case catalog.KindItems:
		w.Items <- Batch{Items: outcome.Items, QueryID: w.Query.ID}
		sess.RecordSuccess()
		w.Governor.ReportSuccess(ctx)

	case catalog.KindHTTPError:
		w.handleHTTPError(ctx, outcome.Status)

	case catalog.KindTransportError:
		log.Printf("⚠️ worker[%d]: transport error: %v", w.Index, outcome.Err)
		if sess != nil {
			sess.RecordError(5)
		}
		w.Governor.ReportGenericFailure(ctx)

	default:
		log.Printf("⚠️ worker[%d]: unrecognized outcome kind", w.Index)
	}
}

// handleHTTPError branches on the upstream status: 401/403 rotate and
// retry, 429 backs off until next cycle, anything else just logs.
func (w *Worker) handleHTTPError(ctx context.Context, status int) {
	switch status {
	case 401, 403:
		kind := governor.Error401
		if status == 403 {
			kind = governor.Error403
		}
		w.Governor.ReportError(ctx, kind)

		for attempt := 0; attempt < 3; attempt++ {
			if ctx.Err() != nil {
				return
			}
			fresh, err := w.Tokens.CreateFreshPair(ctx, w.Index)
			if err != nil {
				continue
			}
			retryOutcome := catalog.Dispatch(fresh, w.Query.URL, 1, w.Config.ItemsPerQuery())
			if retryOutcome.Kind == catalog.KindItems {
				w.Items <- Batch{Items: retryOutcome.Items, QueryID: w.Query.ID}
				fresh.RecordSuccess()
				w.Governor.ReportSuccess(ctx)
				return
			}
		}

	case 429:
		w.Governor.ReportError(ctx, governor.Error429)

	default:
		log.Printf("⚠️ worker[%d]: non-2xx status %d", w.Index, status)
	}
}

// sleep waits for d or ctx cancellation, whichever comes first, reporting
// whether it completed the full wait.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
