package tokenpool_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/killmongerinheret/vinted-watch/internal/tokenpool"
)

type fakeProxySource struct {
	proxy string
	ok    bool
}

func (f fakeProxySource) GetRandomProxy() (string, bool) { return f.proxy, f.ok }

func TestNewBoundsSessionSlots(t *testing.T) {
	p := tokenpool.New(fakeProxySource{}, "https://www.vinted.de/", 5, 3)
	require.Nil(t, p.Session(0))
	require.Nil(t, p.Session(2))
	require.Nil(t, p.Session(3))
	require.Nil(t, p.Session(-1))
}

func TestNewPoolStartsWithEmptySlots(t *testing.T) {
	p := tokenpool.New(fakeProxySource{}, "https://www.vinted.de/", 5, 2)
	require.Nil(t, p.Session(0))
	require.Nil(t, p.Session(1))
}
