package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

type fakeRecord struct {
	data        []byte
	contentType string
	metadata    map[string]string
	etag        string
	updatedAt   time.Time
}

// fakeDB answers the handful of statements the backend issues
type fakeDB struct {
	mu           sync.Mutex
	tableCreated bool
	rows         map[string]*fakeRecord
	chunkQueries int
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[string]*fakeRecord)}
}

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

func (db *fakeDB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	switch {
	case strings.Contains(sql, "CREATE TABLE"):
		db.tableCreated = true
	case strings.Contains(sql, "INSERT INTO"):
		db.rows[args[0].(string)] = &fakeRecord{
			data:        args[1].([]byte),
			contentType: args[2].(string),
			metadata:    args[3].(map[string]string),
			etag:        args[4].(string),
			updatedAt:   args[6].(time.Time),
		}
	case strings.Contains(sql, "DELETE FROM"):
		delete(db.rows, args[0].(string))
	}
	return pgconn.CommandTag{}, nil
}

func (db *fakeDB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...interface{}) pgx.Row {
	db.mu.Lock()
	defer db.mu.Unlock()

	if strings.Contains(sql, "to_regclass") {
		created := db.tableCreated
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*bool) = created
			return nil
		}}
	}

	rec, ok := db.rows[args[0].(string)]
	if !ok {
		return fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}
	}

	switch {
	case strings.Contains(sql, "substring("):
		db.chunkQueries++
		if rec.etag != args[1].(string) {
			return fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}
		}
		start := args[2].(int64) - 1
		end := start + int64(args[3].(int))
		if end > int64(len(rec.data)) {
			end = int64(len(rec.data))
		}
		chunk := append([]byte(nil), rec.data[start:end]...)
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*[]byte) = chunk
			return nil
		}}
	case strings.Contains(sql, "SELECT etag, size"):
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*string) = rec.etag
			*dest[1].(*int64) = int64(len(rec.data))
			return nil
		}}
	default:
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*string) = rec.contentType
			*dest[1].(*map[string]string) = rec.metadata
			*dest[2].(*string) = rec.etag
			*dest[3].(*int64) = int64(len(rec.data))
			*dest[4].(*time.Time) = rec.updatedAt
			return nil
		}}
	}
}

func TestPostgresBackend_Config(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, simplestorage.ErrConfiguration)

	_, err = validate(Config{Table: "objects; DROP TABLE users"})
	assert.ErrorIs(t, err, simplestorage.ErrConfiguration)

	config, err := validate(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTable, config.Table)
	assert.Equal(t, DefaultChunkSize, config.ChunkSize)
}

func TestPostgresBackend_CreatesTable(t *testing.T) {
	db := newFakeDB()
	_, err := NewWithDB(context.Background(), db, Config{})
	require.NoError(t, err)
	assert.True(t, db.tableCreated)
}

func TestPostgresBackend_BasicOps(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	backend, err := NewWithDB(ctx, db, Config{ChunkSize: 4})
	require.NoError(t, err)

	key := backend.NormalizeKey("/docs/", "/report.csv")
	assert.Equal(t, "docs/report.csv", key)

	data := []byte("a,b,c\n1,2,3\n")
	require.NoError(t, backend.Put(ctx, key, bytes.NewReader(data), simplestorage.Attributes{
		"content-type": "text/csv",
		"filename":     "report.csv",
	}))

	meta, err := backend.GetMeta(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", meta.ContentType)
	assert.Equal(t, int64(len(data)), meta.Size)
	assert.Equal(t, "report.csv", meta.Metadata["filename"])
	assert.NotEmpty(t, meta.ETag)

	rc, err := backend.Open(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, got)
	assert.Equal(t, 3, db.chunkQueries)

	require.NoError(t, backend.Remove(ctx, key))
	require.NoError(t, backend.Remove(ctx, key))

	_, err = backend.GetMeta(ctx, key)
	assert.ErrorIs(t, err, simplestorage.ErrNotFound)
	_, err = backend.Open(ctx, key)
	assert.ErrorIs(t, err, simplestorage.ErrNotFound)
}

func TestPostgresBackend_ReplacedDuringRead(t *testing.T) {
	ctx := context.Background()
	backend, err := NewWithDB(ctx, newFakeDB(), Config{ChunkSize: 2})
	require.NoError(t, err)

	require.NoError(t, backend.Put(ctx, "k", strings.NewReader("version one"), nil))
	rc, err := backend.Open(ctx, "k")
	require.NoError(t, err)
	defer rc.Close()

	buf := make([]byte, 2)
	_, err = rc.Read(buf)
	require.NoError(t, err)

	require.NoError(t, backend.Put(ctx, "k", strings.NewReader("version two"), nil))
	_, err = io.ReadAll(rc)
	assert.True(t, simplestorage.IsUnexpected(err))
}

func TestPostgresBackend_URL(t *testing.T) {
	backend, err := NewWithDB(context.Background(), newFakeDB(), Config{})
	require.NoError(t, err)
	assert.Equal(t, "postgres://simplestorage_objects/a/b.txt", backend.URL("a/b.txt"))

	backend, err = NewWithDB(context.Background(), newFakeDB(), Config{URLPrefix: "https://files.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/a/b.txt", backend.URL("a/b.txt"))
}

func TestPostgresBackend_MapError(t *testing.T) {
	assert.True(t, simplestorage.IsNotFound(mapError("get_meta", "k", pgx.ErrNoRows)))
	assert.True(t, simplestorage.IsAccessDenied(mapError("put", "k", &pgconn.PgError{Code: "42501"})))
	assert.True(t, simplestorage.IsUnexpected(mapError("put", "k", &pgconn.PgError{Code: "53100"})))
	assert.True(t, simplestorage.IsUnexpected(mapError("put", "k", errors.New("conn closed"))))
}

// TestPostgresBackend_Integration needs a database at TEST_DATABASE_URL
func TestPostgresBackend_Integration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping PostgreSQL integration test")
	}

	ctx := context.Background()
	table := fmt.Sprintf("simplestorage_test_%d", time.Now().UnixNano())
	backend, err := New(ctx, Config{DatabaseURL: url, Table: table, ChunkSize: 5})
	require.NoError(t, err)
	defer func() {
		_, _ = backend.db.Exec(ctx, "DROP TABLE IF EXISTS "+backend.ident)
		backend.Close()
	}()

	data := []byte("hello from postgres")
	require.NoError(t, backend.Put(ctx, "greeting.txt", bytes.NewReader(data), simplestorage.Attributes{
		"content-type": "text/plain",
		"lang":         "en",
	}))

	meta, err := backend.GetMeta(ctx, "greeting.txt")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", meta.ContentType)
	assert.Equal(t, "en", meta.Metadata["lang"])

	rc, err := backend.Open(ctx, "greeting.txt")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, backend.Remove(ctx, "greeting.txt"))
	_, err = backend.GetMeta(ctx, "greeting.txt")
	assert.ErrorIs(t, err, simplestorage.ErrNotFound)
}
