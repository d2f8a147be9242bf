package tokenpool

import (
	"net/http"
	"sync"
	"time"
)

// Session bundles everything one worker needs to talk to the catalog API:
// an isolated HTTP client, the proxy and bearer token it was minted
// through, and the User-Agent that must match both.
//
// Bearer and proxy live and die together: the
// only way to change either is CreateFreshPair, which replaces the whole
// Session.
type Session struct {
	ID          string
	Proxy       string // normalized proxy URL, "" means direct connection
	UserAgent   string
	SecChUA     string
	BearerToken string
	Client      *http.Client
	CreatedAt   time.Time

	mu         sync.Mutex
	scanCount  int
	errorCount int
	valid      bool
}

// newSession wraps the given client/proxy/UA/token triple as a valid,
// freshly-minted session.
func newSession(id, proxy, ua, secChUA, token string, client *http.Client) *Session {
	return &Session{
		ID:          id,
		Proxy:       proxy,
		UserAgent:   ua,
		SecChUA:     secChUA,
		BearerToken: token,
		Client:      client,
		CreatedAt:   time.Now(),
		valid:       true,
	}
}

// HTTPClient returns the session's isolated client, satisfying
// catalog.Session.
func (s *Session) HTTPClient() *http.Client { return s.Client }

// Bearer returns the session's bearer token, satisfying catalog.Session.
func (s *Session) Bearer() string { return s.BearerToken }

// UserAgentString returns the session's User-Agent, satisfying
// catalog.Session.
func (s *Session) UserAgentString() string { return s.UserAgent }

// SecChUAString returns the session's Sec-Ch-Ua value, if any, satisfying
// catalog.Session.
func (s *Session) SecChUAString() string { return s.SecChUA }

// RecordSuccess increments the scan count used for proactive rotation.
// It does not touch the error count: errors accumulate across a
// session's lifetime until the session is replaced.
func (s *Session) RecordSuccess() (scanCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanCount++
	return s.scanCount
}

// RecordError increments the error count and marks the session invalid
// once it reaches the threshold.
func (s *Session) RecordError(threshold int) (invalid bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorCount++
	if s.errorCount >= threshold {
		s.valid = false
	}
	return !s.valid
}

// Valid reports whether the session is still usable.
func (s *Session) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid
}

// ScanCount returns the number of successful scans since creation or the
// last proactive rotation.
func (s *Session) ScanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanCount
}

// ResetScanCount delays the next proactive rotation; used when a fresh
// pair request fails and the worker keeps its current (possibly
// already-rotation-due) session.
func (s *Session) ResetScanCount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanCount = 0
}
