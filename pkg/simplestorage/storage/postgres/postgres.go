package postgres

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

const (
	backendName = "postgres"

	DefaultTable     = "simplestorage_objects"
	DefaultChunkSize = 1 << 20
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Config options for the PostgreSQL backend
type Config struct {
	DatabaseURL string       // Connection string; ignored by NewWithDB
	Table       string       // Table holding the objects, defaults to DefaultTable
	ChunkSize   int          // Bytes fetched per round trip by Open, defaults to DefaultChunkSize
	URLPrefix   string       // Optional URL prefix; postgres://<table>/ URLs are built when empty
	Logger      *slog.Logger // Optional; defaults to slog.Default()
}

// Backend stores objects as rows: content in a bytea column, the content
// type in its own column and free-form attributes as jsonb.
type Backend struct {
	db        DBTX
	pool      *pgxpool.Pool
	table     string
	ident     string
	chunkSize int
	urlPrefix string
	logger    *slog.Logger
}

func validate(config Config) (Config, error) {
	if config.Table == "" {
		config.Table = DefaultTable
	}
	if !tableNamePattern.MatchString(config.Table) {
		return config, simplestorage.Misconfigured(backendName, "table", fmt.Sprintf("invalid table name %q", config.Table))
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	return config, nil
}

// New opens a connection pool and creates the objects table if it does not
// exist.
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.DatabaseURL == "" {
		return nil, simplestorage.Misconfigured(backendName, "database_url", "database url is required")
	}
	config, err := validate(config)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, config.DatabaseURL)
	if err != nil {
		return nil, &simplestorage.ConfigError{Backend: backendName, Field: "database_url", Msg: "cannot parse connection string", Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, mapError("connect", config.Table, err)
	}

	b, err := NewWithDB(ctx, pool, config)
	if err != nil {
		pool.Close()
		return nil, err
	}
	b.pool = pool
	return b, nil
}

// NewWithDB uses an existing connection, pool or transaction
func NewWithDB(ctx context.Context, db DBTX, config Config) (*Backend, error) {
	config, err := validate(config)
	if err != nil {
		return nil, err
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{
		db:        db,
		table:     config.Table,
		ident:     pgx.Identifier{config.Table}.Sanitize(),
		chunkSize: config.ChunkSize,
		urlPrefix: strings.TrimSuffix(config.URLPrefix, "/"),
		logger:    logger,
	}
	if err := b.ensureTable(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) ensureTable(ctx context.Context) error {
	var exists bool
	if err := b.db.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, b.ident).Scan(&exists); err != nil {
		return mapError("connect", b.table, err)
	}
	if exists {
		return nil
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			path TEXT PRIMARY KEY,
			data BYTEA NOT NULL,
			content_type TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}',
			etag TEXT NOT NULL,
			size BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, b.ident)
	if _, err := b.db.Exec(ctx, query); err != nil {
		return mapError("connect", b.table, err)
	}
	b.logger.Info("New PostgreSQL storage table created", "table", b.table)
	return nil
}

// Close releases the pool opened by New
func (b *Backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

func (b *Backend) Name() string { return backendName }

func (b *Backend) NormalizeKey(contextPath, key string) string {
	return simplestorage.NormalizeKey(contextPath, key)
}

// Put upserts the row for fullPath, replacing content and attributes
func (b *Backend) Put(ctx context.Context, fullPath string, content io.Reader, attrs simplestorage.Attributes) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return simplestorage.Unexpected(backendName, "put", fullPath, err)
	}
	contentType, metadata := simplestorage.SplitAttributes(attrs)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	sum := md5.Sum(data)

	query := fmt.Sprintf(`
		INSERT INTO %s (path, data, content_type, metadata, etag, size, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (path) DO UPDATE SET
			data = EXCLUDED.data,
			content_type = EXCLUDED.content_type,
			metadata = EXCLUDED.metadata,
			etag = EXCLUDED.etag,
			size = EXCLUDED.size,
			updated_at = EXCLUDED.updated_at`, b.ident)

	_, err = b.db.Exec(ctx, query,
		fullPath, data, contentType, metadata, hex.EncodeToString(sum[:]), int64(len(data)), time.Now().UTC())
	if err != nil {
		return mapError("put", fullPath, err)
	}
	return nil
}

// Remove deletes the row; a missing row is not an error
func (b *Backend) Remove(ctx context.Context, fullPath string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE path = $1`, b.ident)
	if _, err := b.db.Exec(ctx, query, fullPath); err != nil {
		return mapError("remove", fullPath, err)
	}
	return nil
}

// GetMeta reads every column except the content
func (b *Backend) GetMeta(ctx context.Context, fullPath string) (*simplestorage.ObjectMeta, error) {
	query := fmt.Sprintf(`
		SELECT content_type, metadata, etag, size, updated_at
		FROM %s WHERE path = $1`, b.ident)

	meta := &simplestorage.ObjectMeta{Key: fullPath}
	err := b.db.QueryRow(ctx, query, fullPath).Scan(
		&meta.ContentType, &meta.Metadata, &meta.ETag, &meta.Size, &meta.UpdatedAt)
	if err != nil {
		return nil, mapError("get_meta", fullPath, err)
	}
	if meta.Metadata == nil {
		meta.Metadata = map[string]string{}
	}
	return meta, nil
}

// Open returns a reader that fetches the content in chunks. The reader is
// pinned to the version current at Open; if the row is replaced or removed
// mid-read the next chunk fails.
func (b *Backend) Open(ctx context.Context, fullPath string) (io.ReadCloser, error) {
	query := fmt.Sprintf(`SELECT etag, size FROM %s WHERE path = $1`, b.ident)

	r := &chunkReader{
		ctx:   ctx,
		b:     b,
		path:  fullPath,
		query: fmt.Sprintf(`SELECT substring(data FROM $3 FOR $4) FROM %s WHERE path = $1 AND etag = $2`, b.ident),
	}
	if err := b.db.QueryRow(ctx, query, fullPath).Scan(&r.etag, &r.size); err != nil {
		return nil, mapError("open", fullPath, err)
	}
	return r, nil
}

// URL returns urlPrefix/<path>, or postgres://<table>/<path> without a prefix
func (b *Backend) URL(fullPath string) string {
	if b.urlPrefix != "" {
		return fmt.Sprintf("%s/%s", b.urlPrefix, fullPath)
	}
	return fmt.Sprintf("postgres://%s/%s", b.table, fullPath)
}

type chunkReader struct {
	ctx    context.Context
	b      *Backend
	path   string
	query  string
	etag   string
	size   int64
	offset int64
	buf    []byte
	closed bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, errors.New("read from closed reader")
	}
	if len(r.buf) == 0 {
		if r.offset >= r.size {
			return 0, io.EOF
		}
		var chunk []byte
		// substring positions are 1-based
		err := r.b.db.QueryRow(r.ctx, r.query, r.path, r.etag, r.offset+1, r.b.chunkSize).Scan(&chunk)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, simplestorage.Unexpected(backendName, "open", r.path, errors.New("object changed during read"))
		}
		if err != nil {
			return 0, mapError("open", r.path, err)
		}
		if len(chunk) == 0 {
			return 0, io.ErrUnexpectedEOF
		}
		r.offset += int64(len(chunk))
		r.buf = chunk
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *chunkReader) Close() error {
	r.closed = true
	r.buf = nil
	return nil
}

func mapError(op, fullPath string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return simplestorage.NotFound(backendName, op, fullPath, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42501", // insufficient_privilege
			"28000", // invalid_authorization_specification
			"28P01": // invalid_password
			return simplestorage.AccessDenied(backendName, op, fullPath, err)
		}
	}
	return simplestorage.Unexpected(backendName, op, fullPath, err)
}
