package urlstrategy

import (
	"fmt"

	"github.com/tendant/simple-storage/pkg/simplestorage"
)

// URLStrategyType represents the type of URL strategy
type URLStrategyType string

const (
	// CDN strategy for direct CDN URLs
	StrategyTypeCDN URLStrategyType = "cdn"

	// Proxy strategy for application-routed URLs
	StrategyTypeProxy URLStrategyType = "proxy"

	// Storage-delegated strategy using the adapter's URL template
	StrategyTypeStorageDelegated URLStrategyType = "storage-delegated"
)

// Config holds configuration for URL strategy creation
type Config struct {
	Type       URLStrategyType
	CDNBaseURL string                // For CDN strategy
	APIBaseURL string                // For proxy strategy
	Adapter    simplestorage.Adapter // For storage-delegated strategy
}

// NewURLStrategy creates a URL strategy based on the configuration
func NewURLStrategy(config Config) (URLStrategy, error) {
	switch config.Type {
	case StrategyTypeCDN:
		if config.CDNBaseURL == "" {
			return nil, simplestorage.Misconfigured("urlstrategy", "cdn_base_url", "CDN base URL is required for CDN strategy")
		}
		return NewCDNStrategy(config.CDNBaseURL), nil

	case StrategyTypeProxy:
		if config.APIBaseURL == "" {
			return nil, simplestorage.Misconfigured("urlstrategy", "api_base_url", "API base URL is required for proxy strategy")
		}
		return NewProxyStrategy(config.APIBaseURL), nil

	case StrategyTypeStorageDelegated, "":
		if config.Adapter == nil {
			return nil, simplestorage.Misconfigured("urlstrategy", "adapter", "adapter is required for storage-delegated strategy")
		}
		return NewStorageDelegatedStrategy(config.Adapter), nil

	default:
		return nil, simplestorage.Misconfigured("urlstrategy", "type", fmt.Sprintf("unknown URL strategy type: %s", config.Type))
	}
}
