package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/tendant/simple-storage/pkg/simplestorage"
)

func TestFSBackend_BasicOps(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}

	ctx := context.Background()
	key := "C/parent/child/file.txt"

	// Put
	data := []byte("hello fs")
	attrs := simplestorage.Attributes{"content-type": "text/plain", "owner": "bob"}
	if err := backend.Put(ctx, key, bytes.NewReader(data), attrs); err != nil {
		t.Fatalf("put: %v", err)
	}

	// GetMeta
	meta, err := backend.GetMeta(ctx, key)
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if meta.Size != int64(len(data)) {
		t.Fatalf("expected size %d, got %d", len(data), meta.Size)
	}
	if meta.ContentType != "text/plain" {
		t.Fatalf("expected text/plain, got %q", meta.ContentType)
	}
	if meta.Metadata["owner"] != "bob" {
		t.Fatalf("expected owner metadata, got %v", meta.Metadata)
	}
	if _, ok := meta.Metadata["content-type"]; ok {
		t.Fatalf("content-type leaked into metadata: %v", meta.Metadata)
	}

	// Open
	rc, err := backend.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(got) != string(data) {
		t.Fatalf("open mismatch: %q", string(got))
	}

	// Remove
	if err := backend.Remove(ctx, key); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmp, key)); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
	if err := backend.Remove(ctx, key); err != nil {
		t.Fatalf("second remove should succeed: %v", err)
	}
	if _, err := backend.GetMeta(ctx, key); !errors.Is(err, simplestorage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFSBackend_PutReplacesAttributes(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	ctx := context.Background()

	if err := backend.Put(ctx, "k", bytes.NewReader([]byte("one")), simplestorage.Attributes{"a": "1", "b": "2"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := backend.Put(ctx, "k", bytes.NewReader([]byte("two")), simplestorage.Attributes{"a": "3"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	meta, err := backend.GetMeta(ctx, "k")
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if _, ok := meta.Metadata["b"]; ok || meta.Metadata["a"] != "3" {
		t.Fatalf("expected metadata replaced, got %v", meta.Metadata)
	}
}

func TestFSBackend_FailedPutKeepsPrevious(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	ctx := context.Background()

	if err := backend.Put(ctx, "r.txt", bytes.NewReader([]byte("v1")), simplestorage.Attributes{"v": "1"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	broken := iotest.ErrReader(errors.New("upload interrupted"))
	if err := backend.Put(ctx, "r.txt", broken, simplestorage.Attributes{"v": "2"}); err == nil {
		t.Fatal("expected put to fail")
	}

	meta, err := backend.GetMeta(ctx, "r.txt")
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if meta.Metadata["v"] != "1" || meta.Size != 2 {
		t.Fatalf("expected previous object, got %+v", meta)
	}
}

func TestFSBackend_SidecarFailureLeavesNoContent(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	ctx := context.Background()

	// A file where the sidecar directory should be
	metaDir := filepath.Join(tmp, metaDirName)
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(metaDir, "b"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	// A non-empty directory where the sidecar file should be
	if err := os.MkdirAll(filepath.Join(metaDir, "s.txt.cbor", "x"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	for _, key := range []string{"b/c.txt", "s.txt"} {
		if err := backend.Put(ctx, key, bytes.NewReader([]byte("new")), simplestorage.Attributes{"v": "1"}); err == nil {
			t.Fatalf("%s: expected put to fail", key)
		}
		if _, err := os.Stat(filepath.Join(tmp, filepath.FromSlash(key))); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("%s: expected no content file, got %v", key, err)
		}
		if _, err := backend.GetMeta(ctx, key); !errors.Is(err, simplestorage.ErrNotFound) {
			t.Fatalf("%s: expected not found, got %v", key, err)
		}
	}
}

func TestFSBackend_FileWithoutSidecar(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "plain.txt"), []byte("just text"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	meta, err := backend.GetMeta(context.Background(), "plain.txt")
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if meta.ContentType != "text/plain; charset=utf-8" {
		t.Fatalf("expected detected content type, got %q", meta.ContentType)
	}
}

func TestFSBackend_Config(t *testing.T) {
	if _, err := New(Config{BaseDir: "  "}); !errors.Is(err, simplestorage.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	dir := filepath.Join(t.TempDir(), "nested", "store")
	if _, err := New(Config{BaseDir: dir}); err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected base dir created, err=%v", err)
	}
}

func TestFSBackend_NormalizeKeyAndURL(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir(), URLPrefix: "https://files.example.com/"})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	cases := []struct {
		contextPath, key, want string
	}{
		{"../ctx", "/a/b.txt", "ctx/a/b.txt"},
		{"../ctx", "a//b.txt", "ctx/a/b.txt"},
		{"", "../../etc/passwd", "etc/passwd"},
	}
	for _, tc := range cases {
		if got := backend.NormalizeKey(tc.contextPath, tc.key); got != tc.want {
			t.Errorf("NormalizeKey(%q, %q) = %q, want %q", tc.contextPath, tc.key, got, tc.want)
		}
	}
	if got := backend.URL("a/b.txt"); got != "https://files.example.com/a/b.txt" {
		t.Fatalf("unexpected url %q", got)
	}
}
