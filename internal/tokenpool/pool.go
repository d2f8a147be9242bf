// Package tokenpool maintains a fixed-size pool of independent
// (bearer-token, proxy, User-Agent) sessions, one per worker slot.
package tokenpool

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// ProxySource is the subset of proxypool.Pool the token pool needs.
type ProxySource interface {
	GetRandomProxy() (string, bool)
}

// Pool owns the dense worker-index → Session mapping.
type Pool struct {
	mu       sync.RWMutex
	sessions []*Session

	proxies       ProxySource
	landingPage   string
	errorLimit    int
	maxSize       int
	acquireJitter time.Duration

	sessionErrors *prometheus.CounterVec
}

// New constructs an empty pool bounded at maxSize slots.
func New(proxies ProxySource, landingPage string, errorLimit, maxSize int) *Pool {
	return &Pool{
		sessions:    make([]*Session, maxSize),
		proxies:     proxies,
		landingPage: landingPage,
		errorLimit:  errorLimit,
		maxSize:     maxSize,
		sessionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vinted_session_errors_total",
			Help: "Token session errors by reason.",
		}, []string{"reason"}),
	}
}

// Collector returns the pool's session-error counter for registration
// by the caller.
func (p *Pool) Collector() prometheus.Collector { return p.sessionErrors }

// PreWarm creates n sessions (one per worker the orchestrator will
// launch) with bounded concurrency and small jitter, so the fleet is
// ready before workers begin.
func (p *Pool) PreWarm(ctx context.Context, n int) error {
	if n > p.maxSize {
		n = p.maxSize
	}

	sem := make(chan struct{}, 10)
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			time.Sleep(time.Duration(rand.Intn(250)) * time.Millisecond)

			sess, err := p.mintSession(ctx)
			if err != nil {
				errs[i] = err
				return
			}

			p.mu.Lock()
			p.sessions[i] = sess
			p.mu.Unlock()
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, e := range errs {
		if e != nil {
			failed++
		}
	}
	if failed > 0 {
		log.Printf("⚠️ tokenpool: %d/%d sessions failed to pre-warm, workers will retry on their next cycle", failed, n)
	}

	return nil
}

// Session returns the session bound to a worker index. A worker never
// inherits another worker's session.
func (p *Pool) Session(workerIndex int) *Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if workerIndex < 0 || workerIndex >= len(p.sessions) {
		return nil
	}
	return p.sessions[workerIndex]
}

// CreateFreshPair atomically constructs a new (proxy, token) pair and
// replaces sessions[workerIndex] in place, preserving the worker → slot
// mapping. If construction fails, the old session is left untouched and
// the error is returned so the caller can retry next cycle.
func (p *Pool) CreateFreshPair(ctx context.Context, workerIndex int) (*Session, error) {
	sess, err := p.mintSession(ctx)
	if err != nil {
		p.sessionErrors.WithLabelValues("fresh_pair_failed").Inc()
		return nil, err
	}

	p.mu.Lock()
	if workerIndex >= 0 && workerIndex < len(p.sessions) {
		p.sessions[workerIndex] = sess
	}
	p.mu.Unlock()

	return sess, nil
}

// mintSession draws a proxy, picks a User-Agent, and acquires a bearer
// token through a one-off landing-page visit.
func (p *Pool) mintSession(ctx context.Context) (*Session, error) {
	proxy, ok := p.proxies.GetRandomProxy()
	if !ok {
		log.Printf("⚠️ tokenpool: no healthy proxy, minting session over direct connection")
	}

	ua := randomUA()

	token, jar, err := acquireToken(ctx, p.landingPage, proxy, ua)
	if err != nil {
		p.sessionErrors.WithLabelValues("token_acquisition_failed").Inc()
		return nil, fmt.Errorf("acquire token: %w", err)
	}

	transport := &http.Transport{}
	if proxy != "" {
		if u, err := url.Parse(proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}

	client := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
		Jar:       jar,
	}

	secChUA := ""
	if ua.isChromium {
		secChUA = ua.secChUA
	}

	return newSession(uuid.NewString(), proxy, ua.value, secChUA, token, client), nil
}

// acquireToken visits the marketplace landing page through an isolated
// cookie jar and the given proxy, returning the access_token_web cookie
// value.
func acquireToken(ctx context.Context, landingPage, proxy string, ua browserUA) (string, *cookiejar.Jar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return "", nil, fmt.Errorf("cookie jar: %w", err)
	}

	c := colly.NewCollector()
	c.SetRequestTimeout(30 * time.Second)
	c.UserAgent = ua.value
	c.SetCookieJar(jar)

	if proxy != "" {
		if err := c.SetProxy(proxy); err != nil {
			return "", nil, fmt.Errorf("set proxy: %w", err)
		}
	}

	c.OnRequest(func(r *colly.Request) {
		if ua.isChromium {
			r.Headers.Set("Sec-Ch-Ua", ua.secChUA)
			r.Headers.Set("Sec-Ch-Ua-Mobile", "?0")
			r.Headers.Set("Sec-Ch-Ua-Platform", `"Windows"`)
		}
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) { visitErr = err })

	landingURL := landingPage
	if landingURL == "" {
		landingURL = "https://www.vinted.de/"
	}
	if err := c.Visit(landingURL); err != nil {
		return "", nil, err
	}
	if visitErr != nil {
		return "", nil, visitErr
	}

	for _, ck := range jar.Cookies(mustParseURL(landingURL)) {
		if ck.Name == "access_token_web" {
			return ck.Value, jar, nil
		}
	}

	return "", nil, fmt.Errorf("access_token_web cookie not set by landing page")
}

func mustParseURL(raw string) *url.URL {
	u, _ := url.Parse(raw)
	return u
}
