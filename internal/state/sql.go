package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver (pure Go)

	"github.com/fraiseql/specql-sub006/internal/registry"
)

// Dialect selects SQL syntax and migrations for a SQLStore.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) migrationDir() string { return "migrations/" + string(d) }

func (d Dialect) gooseName() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// SQLStore keeps the registry document as YAML text in a single-row table.
// Each Update runs in one database transaction and compare-and-swaps on the
// revision column.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// SQLOption configures a SQLStore.
type SQLOption func(*SQLStore)

// WithSQLLogger sets the store logger.
func WithSQLLogger(logger *slog.Logger) SQLOption {
	return func(s *SQLStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSQLStore wraps an open database handle. The schema is not migrated.
func NewSQLStore(db *sql.DB, dialect Dialect, opts ...SQLOption) *SQLStore {
	s := &SQLStore{
		db:      db,
		dialect: dialect,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenSQLite opens (creating if needed) a SQLite registry database and
// migrates it. Use ":memory:" for an in-memory database.
func OpenSQLite(ctx context.Context, path string, opts ...SQLOption) (*SQLStore, error) {
	dsn := path + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	return openSQL(ctx, db, DialectSQLite, opts...)
}

// OpenPostgres connects to PostgreSQL through pgx and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...SQLOption) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres store requires a dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	return openSQL(ctx, db, DialectPostgres, opts...)
}

func openSQL(ctx context.Context, db *sql.DB, dialect Dialect, opts ...SQLOption) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
	}
	s := NewSQLStore(db, dialect, opts...)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Debug("registry database ready", slog.String("dialect", string(dialect)))
	return s, nil
}

// DB exposes the underlying handle.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load reads the current document.
func (s *SQLStore) Load(ctx context.Context) (*registry.Registry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	var doc string
	var revision int64
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT doc, revision FROM registry_document WHERE id = 1`)).Scan(&doc, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return decodeDocument(doc, revision)
}

// Save writes reg if its revision is still current, inserting the row on
// first save.
func (s *SQLStore) Save(ctx context.Context, reg *registry.Registry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		current, exists, err := s.currentRevision(ctx, tx)
		if err != nil {
			return err
		}
		if reg.Revision != current {
			return fmt.Errorf("%w: have revision %d, stored %d", ErrConcurrentModification, reg.Revision, current)
		}
		if !exists {
			return s.insert(ctx, tx, reg)
		}
		return s.update(ctx, tx, reg, current)
	})
}

// Update loads, mutates and saves the document in one transaction.
func (s *SQLStore) Update(ctx context.Context, fn func(reg *registry.Registry) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var doc string
		var revision int64
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT doc, revision FROM registry_document WHERE id = 1`+s.forUpdate())).Scan(&doc, &revision)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load registry: %w", err)
		}

		reg, err := decodeDocument(doc, revision)
		if err != nil {
			return err
		}
		if err := fn(reg); err != nil {
			return err
		}
		return s.update(ctx, tx, reg, revision)
	})
}

func (s *SQLStore) currentRevision(ctx context.Context, tx *sql.Tx) (int64, bool, error) {
	var revision int64
	err := tx.QueryRowContext(ctx, s.rebind(`SELECT revision FROM registry_document WHERE id = 1`+s.forUpdate())).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read registry revision: %w", err)
	}
	return revision, true, nil
}

func (s *SQLStore) insert(ctx context.Context, tx *sql.Tx, reg *registry.Registry) error {
	next := reg.Clone()
	stamp(next, 1)
	data, err := next.Marshal()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO registry_document (id, doc, revision, updated_at) VALUES (1, ?, ?, ?)`),
		string(data), next.Revision, next.LastUpdated,
	); err != nil {
		return fmt.Errorf("failed to insert registry: %w", err)
	}
	*reg = *next
	return nil
}

func (s *SQLStore) update(ctx context.Context, tx *sql.Tx, reg *registry.Registry, current int64) error {
	next := reg.Clone()
	stamp(next, current+1)
	data, err := next.Marshal()
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		s.rebind(`UPDATE registry_document SET doc = ?, revision = ?, updated_at = ? WHERE id = 1 AND revision = ?`),
		string(data), next.Revision, next.LastUpdated, current,
	)
	if err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: revision %d is no longer current", ErrConcurrentModification, current)
	}
	*reg = *next
	s.logger.Debug("registry saved", slog.Int64("revision", next.Revision))
	return nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) forUpdate() string {
	if s.dialect == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func decodeDocument(doc string, revision int64) (*registry.Registry, error) {
	reg, err := registry.Unmarshal([]byte(doc))
	if err != nil {
		return nil, err
	}
	reg.Revision = revision
	return reg, nil
}

// Allocation is one entry of the allocation log.
type Allocation struct {
	Revision  int64          `json:"revision"`
	Scope     registry.Scope `json:"scope"`
	Code      string         `json:"code"`
	Entity    string         `json:"entity,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Recorder is implemented by stores that keep an allocation log.
type Recorder interface {
	Record(ctx context.Context, entries ...Allocation) error
	History(ctx context.Context, limit int) ([]Allocation, error)
}

// Record appends entries to the allocation log.
func (s *SQLStore) Record(ctx context.Context, entries ...Allocation) error {
	if len(entries) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			created := e.CreatedAt
			if created.IsZero() {
				created = time.Now().UTC()
			}
			if _, err := tx.ExecContext(ctx,
				s.rebind(`INSERT INTO allocation_log (revision, scope, code, entity, created_at) VALUES (?, ?, ?, ?, ?)`),
				e.Revision, string(e.Scope), e.Code, e.Entity, created,
			); err != nil {
				return fmt.Errorf("failed to record allocation: %w", err)
			}
		}
		return nil
	})
}

// History returns the most recent allocations, newest first.
func (s *SQLStore) History(ctx context.Context, limit int) ([]Allocation, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT revision, scope, code, entity, created_at FROM allocation_log ORDER BY id DESC LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Allocation
	for rows.Next() {
		var a Allocation
		var scope string
		if err := rows.Scan(&a.Revision, &scope, &a.Code, &a.Entity, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		a.Scope = registry.Scope(scope)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate allocation log: %w", err)
	}
	return out, nil
}
