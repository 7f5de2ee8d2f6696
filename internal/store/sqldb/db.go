// Package sqldb implements store.Store on a relational database. SQLite
// (modernc, pure Go) is the embedded default; PostgreSQL is reachable through
// a pgx pool or through lib/pq. Queries are built with goqu for the active
// dialect and executed with sqlx.
package sqldb

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver for DriverPQ
	_ "modernc.org/sqlite"

	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

//go:embed schema_sqlite.sql
var schemaSQLite string

//go:embed schema_postgres.sql
var schemaPostgres string

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres" // pgx pool
	DriverPQ       = "pq"       // lib/pq
)

// Config selects and tunes the database.
type Config struct {
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN      string
	MaxConns int32
	MinConns int32
}

// Store is a store.Store over database/sql.
type Store struct {
	*queries

	db     *sqlx.DB
	pool   *pgxpool.Pool
	driver string
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to the configured database and applies the schema.
// The schema is idempotent, so reopening an existing database is safe.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{driver: cfg.Driver, logger: logger}

	var schema string
	switch cfg.Driver {
	case DriverSQLite, "":
		s.driver = DriverSQLite
		db, err := sqlx.Open("sqlite", sqliteDSN(cfg.Path))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// Writers serialise on BEGIN IMMEDIATE; a small pool keeps
		// readers concurrent under WAL.
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(time.Hour)
		s.db = db
		schema = schemaSQLite

	case DriverPostgres:
		poolCfg, err := pgxPoolConfig(cfg)
		if err != nil {
			return nil, err
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("open pgx pool: %w", err)
		}
		s.pool = pool
		s.db = sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
		schema = schemaPostgres

	case DriverPQ:
		db, err := sqlx.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		maxConns := int(cfg.MaxConns)
		if maxConns <= 0 {
			maxConns = 8
		}
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(max(int(cfg.MinConns), 2))
		db.SetConnMaxLifetime(time.Hour)
		db.SetConnMaxIdleTime(5 * time.Minute)
		s.db = db
		schema = schemaPostgres

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	s.queries = newQueries(s.db, s.driver)

	if err := s.Ping(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		s.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	logger.Info("database opened", "driver", s.driver)
	return s, nil
}

// sqliteDSN turns a file path into a modernc DSN. Transactions begin
// IMMEDIATE so the write lock is taken before any row is read.
func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + path + "?" + q.Encode()
}

func pgxPoolConfig(cfg Config) (*pgxpool.Config, error) {
	const defaultMaxConnections = int32(8)
	const defaultMinConnections = int32(2)
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5
	const defaultHealthCheckPeriod = time.Minute
	const defaultConnectTimeout = time.Second * 5

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	poolCfg.MaxConns = defaultMaxConnections
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = defaultMinConnections
	if cfg.MinConns > 0 {
		poolCfg.MinConns = min(cfg.MinConns, poolCfg.MaxConns)
	}
	poolCfg.MaxConnLifetime = defaultMaxConnLifetime
	poolCfg.MaxConnIdleTime = defaultMaxConnIdleTime
	poolCfg.HealthCheckPeriod = defaultHealthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = defaultConnectTimeout

	return poolCfg, nil
}

// WithTx implements store.Store.
func (s *Store) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(newQueries(tx, s.driver)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the active driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Close closes the database and, for pgx, the pool behind it.
func (s *Store) Close() error {
	s.logger.Info("closing database connection")
	err := s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// queries runs statements against either the database or a transaction.
type queries struct {
	ext      sqlx.ExtContext
	dialect  goqu.DialectWrapper
	postgres bool
}

func newQueries(ext sqlx.ExtContext, driver string) *queries {
	dialect := "sqlite3"
	postgres := driver == DriverPostgres || driver == DriverPQ
	if postgres {
		dialect = "postgres"
	}
	return &queries{
		ext:      ext,
		dialect:  goqu.Dialect(dialect),
		postgres: postgres,
	}
}

// sqlBuilder is satisfied by every goqu dataset.
type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

func (q *queries) get(ctx context.Context, dest any, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := sqlx.GetContext(ctx, q.ext, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return classify(err)
	}
	return nil
}

func (q *queries) selectInto(ctx context.Context, dest any, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return classify(sqlx.SelectContext(ctx, q.ext, dest, query, args...))
}

func (q *queries) exec(ctx context.Context, b sqlBuilder) (sql.Result, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	res, err := q.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	return res, nil
}

// execOne runs an update or delete that must touch exactly one row.
func (q *queries) execOne(ctx context.Context, b sqlBuilder) error {
	res, err := q.exec(ctx, b)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// insertID runs an insert and returns the generated id.
func (q *queries) insertID(ctx context.Context, ins *goqu.InsertDataset) (int64, error) {
	return q.insertIDColumn(ctx, "id", ins)
}

// insertIDColumn runs an insert and returns the value generated for column.
// SQLite reports it through LastInsertId; PostgreSQL drivers need RETURNING.
func (q *queries) insertIDColumn(ctx context.Context, column string, ins *goqu.InsertDataset) (int64, error) {
	if q.postgres {
		var id int64
		if err := q.get(ctx, &id, ins.Returning(goqu.C(column))); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := q.exec(ctx, ins)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// from starts a prepared select on table.
func (q *queries) from(table any) *goqu.SelectDataset {
	return q.dialect.From(table).Prepared(true)
}

func (q *queries) insert(table string) *goqu.InsertDataset {
	return q.dialect.Insert(table).Prepared(true)
}

func (q *queries) update(table string) *goqu.UpdateDataset {
	return q.dialect.Update(table).Prepared(true)
}

func (q *queries) delete(table string) *goqu.DeleteDataset {
	return q.dialect.Delete(table).Prepared(true)
}

// forUpdate adds a row lock on PostgreSQL. SQLite transactions already hold
// the database write lock.
func (q *queries) forUpdate(ds *goqu.SelectDataset) *goqu.SelectDataset {
	if q.postgres {
		return ds.ForUpdate(exp.Wait)
	}
	return ds
}
