package simplestorage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAttributesGet(t *testing.T) {
	attrs := Attributes{"Content-Type": "text/plain", "owner": "alice"}

	v, ok := attrs.Get("content-type")
	assert.True(t, ok)
	assert.Equal(t, "text/plain", v)
	assert.Equal(t, "text/plain", attrs.ContentType())

	_, ok = attrs.Get("missing")
	assert.False(t, ok)

	clone := attrs.Clone()
	clone["owner"] = "bob"
	assert.Equal(t, "alice", attrs["owner"])
}

func TestAttributesContentLength(t *testing.T) {
	tests := []struct {
		name  string
		attrs Attributes
		want  int64
		ok    bool
	}{
		{"present", Attributes{"content-length": "42"}, 42, true},
		{"mixed case", Attributes{"Content-Length": " 7 "}, 7, true},
		{"missing", Attributes{}, 0, false},
		{"negative", Attributes{"content-length": "-1"}, 0, false},
		{"garbage", Attributes{"content-length": "lots"}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := tt.attrs.ContentLength()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestSplitAttributes(t *testing.T) {
	attrs := Attributes{
		"Content-Type":   " text/csv ",
		"content-length": "10",
		"etag":           "abc",
		"filename":       "q1.csv",
		"owner":          "alice",
	}
	contentType, metadata := SplitAttributes(attrs)
	assert.Equal(t, "text/csv", contentType)
	assert.Equal(t, map[string]string{"filename": "q1.csv", "owner": "alice"}, metadata)
	assert.Len(t, attrs, 5)

	contentType, metadata = SplitAttributes(nil)
	assert.Empty(t, contentType)
	assert.Empty(t, metadata)
}

func TestObjectMetaAttributes(t *testing.T) {
	updated := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	meta := &ObjectMeta{
		ContentType: "text/plain",
		Size:        12,
		ETag:        "abc",
		UpdatedAt:   updated,
		Metadata:    map[string]string{"owner": "alice", "content-type": "ignored"},
	}
	assert.Equal(t, Attributes{
		"owner":          "alice",
		"content-type":   "text/plain",
		"content-length": "12",
		"etag":           "abc",
		"last-modified":  "2024-01-02T03:04:05Z",
	}, meta.Attributes())

	unknown := &ObjectMeta{Size: -1}
	_, ok := unknown.Attributes().ContentLength()
	assert.False(t, ok)
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		contextPath string
		key         string
		want        string
	}{
		{"", "a.txt", "a.txt"},
		{"", "/a.txt", "a.txt"},
		{"/", "//a.txt", "a.txt"},
		{"docs", "a.txt", "docs/a.txt"},
		{"/docs/", "/a.txt", "docs/a.txt"},
		{"  ", "x/y", "x/y"},
		{"tenant/1", "reports/q1.csv", "tenant/1/reports/q1.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.contextPath+"|"+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.contextPath, tt.key))
		})
	}
}
