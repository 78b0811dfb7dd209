package urlstrategy_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-storage/pkg/simplestorage"
	memorystorage "github.com/tendant/simple-storage/pkg/simplestorage/storage/memory"
	"github.com/tendant/simple-storage/pkg/simplestorage/urlstrategy"
)

func TestCDNStrategy(t *testing.T) {
	s := urlstrategy.NewCDNStrategy("https://cdn.example.com/")
	assert.Equal(t, "https://cdn.example.com/reports/q1.csv", s.URL("reports/q1.csv"))
	assert.Equal(t, "https://cdn.example.com/my%20docs/a%3Fb.txt", s.URL("my docs/a?b.txt"))
}

func TestProxyStrategy(t *testing.T) {
	s := urlstrategy.NewProxyStrategy("/api/v1/")
	assert.Equal(t, "/api/v1/objects/reports/q1.csv", s.URL("reports/q1.csv"))
}

func TestStorageDelegatedStrategy(t *testing.T) {
	s := urlstrategy.NewStorageDelegatedStrategy(memorystorage.New())
	assert.Equal(t, "memory://reports/q1.csv", s.URL("reports/q1.csv"))
}

func TestNewURLStrategy(t *testing.T) {
	t.Run("CDN", func(t *testing.T) {
		s, err := urlstrategy.NewURLStrategy(urlstrategy.Config{Type: urlstrategy.StrategyTypeCDN, CDNBaseURL: "https://cdn.example.com"})
		require.NoError(t, err)
		assert.IsType(t, &urlstrategy.CDNStrategy{}, s)
	})

	t.Run("DefaultsToStorageDelegated", func(t *testing.T) {
		s, err := urlstrategy.NewURLStrategy(urlstrategy.Config{Adapter: memorystorage.New()})
		require.NoError(t, err)
		assert.IsType(t, &urlstrategy.StorageDelegatedStrategy{}, s)
	})

	t.Run("MissingSettings", func(t *testing.T) {
		for _, config := range []urlstrategy.Config{
			{Type: urlstrategy.StrategyTypeCDN},
			{Type: urlstrategy.StrategyTypeProxy},
			{Type: urlstrategy.StrategyTypeStorageDelegated},
			{Type: "signed"},
		} {
			_, err := urlstrategy.NewURLStrategy(config)
			assert.ErrorIs(t, err, simplestorage.ErrConfiguration, "type %q", config.Type)
		}
	})
}

func TestServiceUsesStrategy(t *testing.T) {
	backend := memorystorage.New()
	svc, err := simplestorage.New(
		simplestorage.WithAdapter(backend),
		simplestorage.WithContextPath("/public"),
		simplestorage.WithURLStrategy(urlstrategy.NewCDNStrategy("https://cdn.example.com")),
	)
	require.NoError(t, err)

	url, err := svc.GetURL("logo.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/public/logo.png", url)

	// The URL is built even though nothing was stored
	assert.Equal(t, 0, backend.Len())

	require.NoError(t, svc.Put(context.Background(), "logo.png", strings.NewReader("png"), nil))
	obj, err := svc.Get(context.Background(), "logo.png")
	require.NoError(t, err)
	assert.Equal(t, url, obj.URL())
}
