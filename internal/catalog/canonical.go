// Package catalog translates a saved-search URL into a catalog API
// request and classifies the response.
package catalog

import (
	"net/url"
	"sort"
	"strings"
)

// droppedParams are stripped from a saved-search URL because they either
// encode client-side state (page, time) or would bias/duplicate results
// (search_id, disabled_personalization).
var droppedParams = map[string]bool{
	"time":                     true,
	"search_id":                true,
	"disabled_personalization": true,
	"page":                     true,
}

// Canonicalize parses a saved-search URL, forces order=newest_first, and
// drops the params that should never be replayed verbatim.
func Canonicalize(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for key := range q {
		if droppedParams[key] {
			q.Del(key)
		}
	}
	q.Set("order", "newest_first")

	u.RawQuery = encodeSorted(q)
	return u, nil
}

// encodeSorted mirrors url.Values.Encode but is isolated so canonical URLs
// are stable across repeated calls.
func encodeSorted(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
