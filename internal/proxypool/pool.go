// Package proxypool loads, validates and rotates the
// outbound proxy identities the token pool draws from.
package proxypool

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// HealthCache is an optional warm-start mirror of proxy health. It is
// satisfied by internal/cache's Redis-backed store or a no-op stub; the
// pool works identically either way.
type HealthCache interface {
	SetProxyHealth(ctx context.Context, proxyURL string, healthy bool)
}

type noopCache struct{}

func (noopCache) SetProxyHealth(context.Context, string, bool) {}

// entry tracks one proxy's normalized address and health.
type entry struct {
	normalized string
	healthy    bool
	lastCheck  time.Time
}

// Pool holds the set of candidate proxies and their health.
type Pool struct {
	mu          sync.RWMutex
	entries     []*entry
	testURL     string
	timeout     time.Duration
	concurrency int
	cache       HealthCache
}

// Option configures a Pool.
type Option func(*Pool)

// WithTestURL overrides the default HEAD-probe target.
func WithTestURL(u string) Option { return func(p *Pool) { p.testURL = u } }

// WithValidationConcurrency bounds the validation worker pool (default 10).
func WithValidationConcurrency(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithHealthCache mirrors every health transition to an external cache.
func WithHealthCache(c HealthCache) Option { return func(p *Pool) { p.cache = c } }

// New builds a Pool from raw proxy strings in any of the accepted
// source formats: "host:port", "user:pass@host:port",
// "scheme://host:port[...]", and the four-field "host:port:user:pass"
// variant.
func New(raw []string, opts ...Option) *Pool {
	p := &Pool{
		testURL:     "https://www.vinted.de/",
		timeout:     10 * time.Second,
		concurrency: 10,
		cache:       noopCache{},
	}
	for _, opt := range opts {
		opt(p)
	}

	seen := map[string]bool{}
	for _, r := range raw {
		n, err := Normalize(r)
		if err != nil || n == "" || seen[n] {
			continue
		}
		seen[n] = true
		p.entries = append(p.entries, &entry{normalized: n, healthy: true})
	}

	return p
}

// Normalize rewrites any of the accepted source formats into
// scheme://[user:pass@]host:port. It defaults to the "http" scheme when
// none is present.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty proxy entry")
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parse proxy url: %w", err)
		}
		return (&url.URL{Scheme: u.Scheme, User: u.User, Host: u.Host}).String(), nil
	}

	// host:port:user:pass (four-field variant)
	parts := strings.Split(raw, ":")
	if len(parts) == 4 {
		host, port, user, pass := parts[0], parts[1], parts[2], parts[3]
		u := &url.URL{Scheme: "http", Host: host + ":" + port, User: url.UserPassword(user, pass)}
		return u.String(), nil
	}

	// user:pass@host:port
	if strings.Contains(raw, "@") {
		u, err := url.Parse("http://" + raw)
		if err != nil {
			return "", fmt.Errorf("parse proxy auth form: %w", err)
		}
		return u.String(), nil
	}

	// bare host:port
	if !strings.Contains(raw, ":") {
		return "", fmt.Errorf("not a host:port pair: %q", raw)
	}
	return (&url.URL{Scheme: "http", Host: raw}).String(), nil
}

// Size returns the number of candidate proxies (healthy or not).
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// GetRandomProxy returns a uniformly random healthy proxy URL, the sole
// healthy proxy deterministically if there is exactly one, or ("", false)
// if none are healthy. Callers must fall back to a direct connection and
// log a warning rather than reusing a stale binding.
func (p *Pool) GetRandomProxy() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var healthy []string
	for _, e := range p.entries {
		if e.healthy {
			healthy = append(healthy, e.normalized)
		}
	}

	switch len(healthy) {
	case 0:
		return "", false
	case 1:
		return healthy[0], true
	default:
		return healthy[rand.Intn(len(healthy))], true
	}
}

// Validate runs the HEAD-probe health check over the pool on a bounded
// worker pool. It never returns an error: a validation failure only
// demotes that one proxy.
func (p *Pool) Validate(ctx context.Context) {
	p.mu.RLock()
	entries := make([]*entry, len(p.entries))
	copy(entries, p.entries)
	p.mu.RUnlock()

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for _, e := range entries {
		wg.Add(1)
		sem <- struct{}{}
		go func(e *entry) {
			defer wg.Done()
			defer func() { <-sem }()
			p.checkOne(ctx, e)
		}(e)
	}

	wg.Wait()
}

// Recheck re-validates only proxies whose last check is older than
// interval, or every proxy if interval is zero. Previously-failed
// proxies may be re-promoted.
func (p *Pool) Recheck(ctx context.Context, interval time.Duration) {
	p.mu.RLock()
	var stale []*entry
	now := time.Now()
	for _, e := range p.entries {
		if interval == 0 || now.Sub(e.lastCheck) >= interval {
			stale = append(stale, e)
		}
	}
	p.mu.RUnlock()

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for _, e := range stale {
		wg.Add(1)
		sem <- struct{}{}
		go func(e *entry) {
			defer wg.Done()
			defer func() { <-sem }()
			p.checkOne(ctx, e)
		}(e)
	}
	wg.Wait()
}

func (p *Pool) checkOne(ctx context.Context, e *entry) {
	healthy := p.probe(ctx, e.normalized)

	p.mu.Lock()
	e.healthy = healthy
	e.lastCheck = time.Now()
	p.mu.Unlock()

	p.cache.SetProxyHealth(ctx, e.normalized, healthy)
}

func (p *Pool) probe(ctx context.Context, proxyURL string) bool {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return false
	}

	client := &http.Client{
		Timeout:   p.timeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(u)},
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, p.testURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", randomUA())

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

var probeUAs = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:124.0) Gecko/20100101 Firefox/124.0",
}

func randomUA() string { return probeUAs[rand.Intn(len(probeUAs))] }

// LogNoHealthyProxy logs the required warning when callers must
// fall back to a direct connection.
func LogNoHealthyProxy(component string) {
	log.Printf("⚠️ %s: no healthy proxies, falling back to direct connection", component)
}
