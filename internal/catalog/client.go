package catalog

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// arrayParams maps a saved-search query param to its API field name.
var arrayParams = map[string]string{
	"catalog[]":                 "catalog_ids",
	"color_ids[]":               "color_ids",
	"brand_ids[]":               "brand_ids",
	"size_ids[]":                "size_ids",
	"material_ids[]":            "material_ids",
	"status_ids[]":              "status_ids",
	"country_ids[]":             "country_ids",
	"city_ids[]":                "city_ids",
	"video_game_platform_ids[]": "video_game_platform_ids",
}

// apiRequests is the process-wide counter incremented on every dispatch.
var apiRequests = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "vinted_api_requests_total",
	Help: "Total catalog API requests dispatched.",
})

// requestCount shadows apiRequests as a readable value, so the
// orchestrator can persist it to the store's vinted_api_requests
// parameter (prometheus counters are write-only from Go).
var requestCount atomic.Int64

// Collector exposes the process-wide API request counter for registration.
func Collector() prometheus.Collector { return apiRequests }

// RequestCount returns the number of catalog requests dispatched since
// process start.
func RequestCount() int64 { return requestCount.Load() }

// Session is the subset of tokenpool.Session the client needs: an
// authenticated HTTP client plus the identity that minted it.
type Session interface {
	HTTPClient() *http.Client
	Bearer() string
	UserAgentString() string
	SecChUAString() string
}

// Kind discriminates an Outcome's variant.
type Kind int

const (
	KindItems Kind = iota
	KindHTTPError
	KindTransportError
)

// Outcome is the tagged result of one catalog dispatch. Exactly one of
// Items / Status / Err is meaningful, selected by Kind.
type Outcome struct {
	Kind   Kind
	Items  []Item
	Status int
	Err    error
}

func itemsOutcome(items []Item) Outcome { return Outcome{Kind: KindItems, Items: items} }
func httpErrorOutcome(status int) Outcome {
	return Outcome{Kind: KindHTTPError, Status: status}
}
func transportErrorOutcome(err error) Outcome {
	return Outcome{Kind: KindTransportError, Err: err}
}

// IsAuthOrLimit reports whether the outcome is a 401/403/429 that should
// trigger session rotation or backoff rather than a hard failure.
func (o Outcome) IsAuthOrLimit() bool {
	return o.Kind == KindHTTPError && (o.Status == 401 || o.Status == 403 || o.Status == 429)
}

// buildParams maps a canonicalized saved-search URL's query into the
// catalog API's own parameter names.
func buildParams(u *url.URL, page, perPage int) url.Values {
	src := u.Query()
	out := url.Values{}

	// Multi-value filters are comma-joined into a single field, the
	// shape the catalog API expects (catalog_ids=1,2 rather than a
	// repeated parameter).
	for srcKey, apiKey := range arrayParams {
		if vals, ok := src[srcKey]; ok && len(vals) > 0 {
			out.Set(apiKey, strings.Join(vals, ","))
		}
	}

	if _, ok := src["disposal[]"]; ok {
		out.Set("is_for_swap", "1")
	}

	if text := src.Get("search_text"); text != "" {
		tokens := strings.Fields(text)
		out.Set("search_text", strings.Join(tokens, "+"))
	}

	for _, scalar := range []string{"price_from", "price_to", "currency"} {
		if v := src.Get(scalar); v != "" {
			out.Set(scalar, v)
		}
	}

	out.Set("page", strconv.Itoa(page))
	out.Set("per_page", strconv.Itoa(perPage))
	out.Set("order", "newest_first")

	return out
}

// Dispatch issues one catalog API request and classifies its outcome.
func Dispatch(sess Session, queryURL string, page, perPage int) Outcome {
	canon, err := Canonicalize(queryURL)
	if err != nil {
		return transportErrorOutcome(fmt.Errorf("canonicalize: %w", err))
	}

	params := buildParams(canon, page, perPage)

	apiURL := url.URL{
		Scheme:   "https",
		Host:     canon.Host,
		Path:     "/api/v2/catalog/items",
		RawQuery: params.Encode(),
	}

	req, err := http.NewRequest(http.MethodGet, apiURL.String(), nil)
	if err != nil {
		return transportErrorOutcome(fmt.Errorf("build request: %w", err))
	}

	origin := "https://" + canon.Host
	req.Header.Set("Authorization", "Bearer "+sess.Bearer())
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Referer", origin+"/")
	req.Header.Set("Origin", origin)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("User-Agent", sess.UserAgentString())
	req.Host = canon.Host
	if secChUA := sess.SecChUAString(); secChUA != "" {
		req.Header.Set("Sec-Ch-Ua", secChUA)
		req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
		req.Header.Set("Sec-Ch-Ua-Platform", `"Windows"`)
	}

	apiRequests.Inc()
	requestCount.Add(1)

	resp, err := sess.HTTPClient().Do(req)
	if err != nil {
		return transportErrorOutcome(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportErrorOutcome(fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return httpErrorOutcome(resp.StatusCode)
	}

	items, err := ParseItems(body, canon.Host)
	if err != nil {
		return transportErrorOutcome(fmt.Errorf("parse items: %w", err))
	}

	return itemsOutcome(items)
}
