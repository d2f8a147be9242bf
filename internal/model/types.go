// Package model holds the entity types shared across the scraping
// fleet and its store, independent of how either is implemented.
package model

import "time"

// Query is a saved search being watched.
type Query struct {
	ID         int64
	URL        string
	Name       string
	ThreadID   *int64
	LastItemTS int64
	Priority   bool
}

// Item is a discovered marketplace listing.
type Item struct {
	ID          string
	Title       string
	Price       string // fixed-point, two fractional digits, e.g. "12.50"
	Currency    string
	PublishedTS int64
	FoundTS     int64
	PhotoURL    string
	BrandTitle  string
	QueryID     int64
	SizeTitle   *string
}

// URL returns the canonical public item link for this listing's locale.
func (i Item) URL(host string) string {
	if host == "" {
		host = "www.vinted.de"
	}
	return "https://" + host + "/items/" + i.ID
}

// Parameter is a key/value configuration row. Interpretation is
// per-consumer; values are always stored as strings.
type Parameter struct {
	Key   string
	Value string
}

// Recognized parameter keys.
const (
	ParamQueryRefreshDelay        = "query_refresh_delay"
	ParamItemsPerQuery            = "items_per_query"
	ParamProxyList                = "proxy_list"
	ParamProxyListLink            = "proxy_list_link"
	ParamCheckProxies             = "check_proxies"
	ParamProxyRotationInterval    = "proxy_rotation_interval"
	ParamTelegramToken            = "telegram_token"
	ParamTelegramChatID           = "telegram_chat_id"
	ParamVersion                  = "version"
	ParamBotStartTime             = "bot_start_time"
	ParamVintedAPIRequests        = "vinted_api_requests"
	ParamRedeployThresholdMinutes = "redeploy_threshold_minutes"
	ParamMaxHTTPErrors            = "max_http_errors"
	ParamLastRedeployTime         = "last_redeploy_time"
	ParamLastProxyCheckTime       = "last_proxy_check_time"
)

// Now returns the current wall clock as a unix timestamp. Kept as a
// function value (rather than every caller calling time.Now directly) so
// tests can substitute it.
var Now = func() int64 { return time.Now().Unix() }
