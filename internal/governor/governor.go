// Package governor detects that the fleet has globally lost upstream
// access and triggers a process restart.
package governor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrorKind is one of the three independently tracked HTTP error classes.
type ErrorKind int

const (
	Error401 ErrorKind = iota
	Error403
	Error429
)

const silentResetAfter = 5 * time.Minute

// restartAttempts counts every restart-action attempt by outcome.
var restartAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "vinted_restart_attempts_total",
	Help: "Restart action attempts by action and outcome.",
}, []string{"action", "outcome"})

// Collector exposes the restart-attempt counter for registration.
func Collector() prometheus.Collector { return restartAttempts }

type counter struct {
	count     int
	firstSeen time.Time
	lastSeen  time.Time
}

// RestartAction performs one restart strategy, returning nil on success.
type RestartAction interface {
	Name() string
	Attempt(ctx context.Context) error
}

// Governor tracks the three error counters and the success streak, and
// fires a restart when the trigger conditions are met.
type Governor struct {
	mu       sync.Mutex
	counters map[ErrorKind]*counter
	streak   int

	lastRedeploy time.Time

	successThreshold  int
	redeployThreshold time.Duration
	maxHTTPErrors     int
	minInterval       time.Duration

	actions []RestartAction

	now func() time.Time
}

// Config holds the restart-decision tunables.
type Config struct {
	SuccessThreshold  int
	RedeployThreshold time.Duration
	MaxHTTPErrors     int
	MinInterval       time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SuccessThreshold:  10,
		RedeployThreshold: 4 * time.Minute,
		MaxHTTPErrors:     5,
		MinInterval:       3 * time.Minute,
	}
}

// New constructs a Governor with the given config and restart actions,
// tried in order on each trigger.
func New(cfg Config, actions []RestartAction) *Governor {
	return &Governor{
		counters: map[ErrorKind]*counter{
			Error401: {},
			Error403: {},
			Error429: {},
		},
		successThreshold:  cfg.SuccessThreshold,
		redeployThreshold: cfg.RedeployThreshold,
		maxHTTPErrors:     cfg.MaxHTTPErrors,
		minInterval:       cfg.MinInterval,
		actions:           actions,
		now:               time.Now,
	}
}

// SetLastRedeploy seeds the cooldown clock from persisted state at boot.
func (g *Governor) SetLastRedeploy(t time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastRedeploy = t
}

// ReportSuccess records a successful upstream call.
func (g *Governor) ReportSuccess(ctx context.Context) {
	g.mu.Lock()
	g.streak++
	streak := g.streak
	total := g.totalErrorsLocked()
	if streak >= g.successThreshold && total > 0 {
		g.resetCountersLocked()
	}
	g.mu.Unlock()
}

// ReportGenericFailure records a non-HTTP (transport) failure: it resets
// the success streak like any error report, but does not feed one of
// the three HTTP counters since it isn't one of 401/403/429.
func (g *Governor) ReportGenericFailure(ctx context.Context) {
	g.mu.Lock()
	g.streak = 0
	g.mu.Unlock()
}

// ReportError records an error of the given kind and evaluates the
// trigger conditions, firing a restart if met.
func (g *Governor) ReportError(ctx context.Context, kind ErrorKind) {
	g.mu.Lock()
	now := g.now()
	g.streak = 0

	c := g.counters[kind]
	if !c.lastSeen.IsZero() && now.Sub(c.lastSeen) > silentResetAfter {
		c.count = 0
		c.firstSeen = time.Time{}
	}
	if c.count == 0 {
		c.firstSeen = now
	}
	c.count++
	c.lastSeen = now

	critical, normal := g.evaluateTriggerLocked(now)
	g.mu.Unlock()

	if critical || normal {
		g.fireRestart(ctx)
	}
}

func (g *Governor) totalErrorsLocked() int {
	total := 0
	for _, c := range g.counters {
		total += c.count
	}
	return total
}

func (g *Governor) resetCountersLocked() {
	for k := range g.counters {
		g.counters[k] = &counter{}
	}
	g.streak = 0
}

func (g *Governor) evaluateTriggerLocked(now time.Time) (critical, normal bool) {
	total := g.totalErrorsLocked()
	if total >= 100 {
		return true, false
	}

	var earliest time.Time
	for _, c := range g.counters {
		if c.count == 0 {
			continue
		}
		if earliest.IsZero() || c.firstSeen.Before(earliest) {
			earliest = c.firstSeen
		}
	}
	if earliest.IsZero() {
		return false, false
	}

	elapsed := now.Sub(earliest) >= g.redeployThreshold
	enough := total >= g.maxHTTPErrors
	cooled := g.lastRedeploy.IsZero() || now.Sub(g.lastRedeploy) >= g.minInterval

	return false, elapsed && enough && cooled
}

// ForceRestart triggers the restart action chain immediately, bypassing
// the error-count and cooldown trigger conditions.
func (g *Governor) ForceRestart(ctx context.Context) {
	g.fireRestart(ctx)
}

// fireRestart tries each restart action in order, stopping at the first
// success, and resets state once one succeeds.
func (g *Governor) fireRestart(ctx context.Context) {
	for _, action := range g.actions {
		if err := action.Attempt(ctx); err != nil {
			restartAttempts.WithLabelValues(action.Name(), "failure").Inc()
			log.Printf("⚠️ governor: restart action %s failed: %v", action.Name(), err)
			continue
		}
		restartAttempts.WithLabelValues(action.Name(), "success").Inc()
		log.Printf("governor: restart triggered via %s", action.Name())

		g.mu.Lock()
		g.lastRedeploy = g.now()
		g.resetCountersLocked()
		g.mu.Unlock()
		return
	}
	log.Printf("⚠️ governor: all restart actions exhausted, fleet remains degraded")
}

// Snapshot reports the current counters for the admin status endpoint.
type Snapshot struct {
	Error401      int
	Error403      int
	Error429      int
	SuccessStreak int
	LastRedeploy  time.Time
}

func (g *Governor) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		Error401:      g.counters[Error401].count,
		Error403:      g.counters[Error403].count,
		Error429:      g.counters[Error429].count,
		SuccessStreak: g.streak,
		LastRedeploy:  g.lastRedeploy,
	}
}
