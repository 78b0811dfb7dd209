package urlstrategy

import (
	"fmt"
	"strings"
)

// ProxyStrategy routes downloads through the application server, for
// deployments where the storage backend is not publicly reachable
type ProxyStrategy struct {
	APIBaseURL string // e.g., "https://api.example.com" or "/api/v1"
}

// NewProxyStrategy creates a new application-routed URL strategy
func NewProxyStrategy(apiBaseURL string) *ProxyStrategy {
	return &ProxyStrategy{APIBaseURL: strings.TrimSuffix(apiBaseURL, "/")}
}

// URL returns {api}/objects/{path}
func (s *ProxyStrategy) URL(fullPath string) string {
	return fmt.Sprintf("%s/objects/%s", s.APIBaseURL, escapePath(fullPath))
}
