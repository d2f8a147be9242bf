package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/killmongerinheret/vinted-watch/internal/catalog"
)

func TestCanonicalizeForcesOrderAndDropsVolatileParams(t *testing.T) {
	u, err := catalog.Canonicalize("https://www.vinted.fr/catalog?search_text=jacket&time=123&page=4&search_id=9&disabled_personalization=true&order=price_high_to_low")
	require.NoError(t, err)

	q := u.Query()
	require.Equal(t, "newest_first", q.Get("order"))
	require.Empty(t, q.Get("time"))
	require.Empty(t, q.Get("page"))
	require.Empty(t, q.Get("search_id"))
	require.Empty(t, q.Get("disabled_personalization"))
	require.Equal(t, "jacket", q.Get("search_text"))
}

func TestCanonicalizeIsStable(t *testing.T) {
	raw := "https://www.vinted.de/catalog?brand_ids[]=1&brand_ids[]=2&color_ids[]=5"
	first, err := catalog.Canonicalize(raw)
	require.NoError(t, err)
	second, err := catalog.Canonicalize(raw)
	require.NoError(t, err)
	require.Equal(t, first.RawQuery, second.RawQuery)
}

func TestParseItemsNormalizesPriceAndTimestamp(t *testing.T) {
	body := []byte(`{"items":[
		{"id":"123","title":"Jacket","price":{"amount":"12.5","currency_code":"EUR"},"created_at_ts":1700000000,"photo":{"url":"https://img/1.jpg"},"brand_title":"Nike","size_title":"M"},
		{"id":"456","title":"No photo","price":{"amount":"9","currency_code":"EUR"},"raw_timestamp":1700000001,"photo":null,"brand_title":"Adidas"}
	]}`)

	items, err := catalog.ParseItems(body, "www.vinted.de")
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.Equal(t, "123", items[0].ID)
	require.Equal(t, "12.50", items[0].Price)
	require.Equal(t, int64(1700000000), items[0].PublishedTS)
	require.Equal(t, "https://img/1.jpg", items[0].PhotoURL)
	require.NotNil(t, items[0].SizeTitle)
	require.Equal(t, "M", *items[0].SizeTitle)

	require.Equal(t, "9.00", items[1].Price)
	require.Equal(t, int64(1700000001), items[1].PublishedTS)
	require.Empty(t, items[1].PhotoURL)
	require.Nil(t, items[1].SizeTitle)
}

func TestOutcomeIsAuthOrLimit(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{401, true},
		{403, true},
		{429, true},
		{500, false},
		{200, false},
	}
	for _, tt := range tests {
		o := catalog.Outcome{Kind: catalog.KindHTTPError, Status: tt.status}
		require.Equal(t, tt.want, o.IsAuthOrLimit())
	}
}
