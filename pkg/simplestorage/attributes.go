package simplestorage

import (
	"strconv"
	"strings"
	"time"
)

// Reserved attribute names
const (
	AttrContentType   = "content-type"
	AttrContentLength = "content-length"
	AttrFilename      = "filename"
	AttrETag          = "etag"
	AttrLastModified  = "last-modified"
)

// Attributes maps attribute names to values. Names are matched
// case-insensitively for the reserved keys.
type Attributes map[string]string

// Clone returns a copy that can be modified without affecting a.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Get returns the value for name, falling back to a case-insensitive match.
func (a Attributes) Get(name string) (string, bool) {
	if v, ok := a[name]; ok {
		return v, true
	}
	for k, v := range a {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// ContentType returns the content-type attribute or "".
func (a Attributes) ContentType() string {
	v, _ := a.Get(AttrContentType)
	return v
}

// ContentLength returns the parsed content-length attribute.
func (a Attributes) ContentLength() (int64, bool) {
	v, ok := a.Get(AttrContentLength)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsReserved reports whether name is derived from provider properties rather
// than stored as free-form metadata.
func IsReserved(name string) bool {
	switch strings.ToLower(name) {
	case AttrContentType, AttrContentLength, AttrETag, AttrLastModified:
		return true
	}
	return false
}

// SplitAttributes separates the content type, which providers store in a
// dedicated property, from the free-form metadata. Reserved provider-derived
// keys are dropped; the input map is not modified.
func SplitAttributes(attrs Attributes) (contentType string, metadata map[string]string) {
	metadata = make(map[string]string, len(attrs))
	for k, v := range attrs {
		if strings.EqualFold(k, AttrContentType) {
			contentType = strings.TrimSpace(v)
			continue
		}
		if IsReserved(k) {
			continue
		}
		metadata[k] = v
	}
	return contentType, metadata
}

// ObjectMeta contains metadata about an object as reported by a backend
type ObjectMeta struct {
	Key         string
	ContentType string
	Size        int64 // -1 when the backend does not report it
	ETag        string
	UpdatedAt   time.Time
	Metadata    map[string]string
}

// Attributes merges free-form metadata with the reserved, provider-derived
// attributes.
func (m *ObjectMeta) Attributes() Attributes {
	attrs := make(Attributes, len(m.Metadata)+4)
	for k, v := range m.Metadata {
		if IsReserved(k) {
			continue
		}
		attrs[k] = v
	}
	if m.ContentType != "" {
		attrs[AttrContentType] = m.ContentType
	}
	if m.Size >= 0 {
		attrs[AttrContentLength] = strconv.FormatInt(m.Size, 10)
	}
	if m.ETag != "" {
		attrs[AttrETag] = m.ETag
	}
	if !m.UpdatedAt.IsZero() {
		attrs[AttrLastModified] = m.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return attrs
}
