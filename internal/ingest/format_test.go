package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/killmongerinheret/vinted-watch/internal/model"
)

func TestLatencySuffixBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		published int64
		found     int64
		want      string
	}{
		{"no published timestamp", 0, 1000, ""},
		{"clock skew, published after found", 2000, 1000, ""},
		{"discovered within seconds", 1000, 1030, "+30s"},
		{"discovered within minutes", 1000, 1090, "+1m"},
		{"exactly one hour old", 1000, 4600, ""},
		{"older than one hour", 1000, 10000, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := model.Item{PublishedTS: tt.published, FoundTS: tt.found}
			require.Equal(t, tt.want, latencySuffix(it))
		})
	}
}

func TestFormatNotificationLayout(t *testing.T) {
	size := "M"
	it := model.Item{
		ID:         "A",
		Title:      "Boot <deluxe>",
		Price:      "12.50",
		Currency:   "EUR",
		BrandTitle: "Acme",
		SizeTitle:  &size,
		PhotoURL:   "https://img/a.jpg",
	}

	text := formatNotification(it, "www.vinted.de")

	require.Contains(t, text, "<b>Boot &lt;deluxe&gt;</b>")
	require.Contains(t, text, "💶12.50 EUR")
	require.Contains(t, text, "M")
	require.Contains(t, text, "Acme")
	require.Contains(t, text, `<a href="https://img/a.jpg">`)
	require.NotContains(t, text, "(+") // no timestamps set, no latency suffix
}
