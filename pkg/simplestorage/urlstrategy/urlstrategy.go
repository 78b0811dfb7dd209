// Package urlstrategy builds public URLs for stored objects. Every strategy
// is pure: it never performs I/O and never checks that the object exists.
package urlstrategy

import (
	"net/url"
	"strings"

	"github.com/tendant/simple-storage/pkg/simplestorage"
)

// URLStrategy is the strategy contract consumed by simplestorage.WithURLStrategy
type URLStrategy = simplestorage.URLStrategy

// escapePath escapes each segment of fullPath, keeping the separators
func escapePath(fullPath string) string {
	segments := strings.Split(fullPath, simplestorage.PathSeparator)
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, simplestorage.PathSeparator)
}
