package catalog

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildParamsCommaJoinsArrayFilters(t *testing.T) {
	u, err := url.Parse("https://www.vinted.de/catalog?catalog[]=5&catalog[]=6&brand_ids[]=10&search_text=wool+coat&price_to=50&disposal[]=1")
	require.NoError(t, err)

	params := buildParams(u, 1, 20)

	require.Equal(t, "5,6", params.Get("catalog_ids"))
	require.Equal(t, "10", params.Get("brand_ids"))
	require.Equal(t, "wool+coat", params.Get("search_text"))
	require.Equal(t, "50", params.Get("price_to"))
	require.Equal(t, "1", params.Get("is_for_swap"))
	require.Equal(t, "newest_first", params.Get("order"))
	require.Equal(t, "1", params.Get("page"))
	require.Equal(t, "20", params.Get("per_page"))
}
