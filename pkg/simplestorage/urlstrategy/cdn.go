package urlstrategy

import (
	"fmt"
	"strings"
)

// CDNStrategy generates URLs that point directly to a CDN in front of the
// storage backend
type CDNStrategy struct {
	CDNBaseURL string // e.g., "https://cdn.example.com"
}

// NewCDNStrategy creates a new CDN URL strategy
func NewCDNStrategy(cdnBaseURL string) *CDNStrategy {
	// Ensure cdnBaseURL doesn't have trailing slash
	return &CDNStrategy{CDNBaseURL: strings.TrimSuffix(cdnBaseURL, "/")}
}

// URL returns {cdn}/{path}
func (s *CDNStrategy) URL(fullPath string) string {
	return fmt.Sprintf("%s/%s", s.CDNBaseURL, escapePath(fullPath))
}
