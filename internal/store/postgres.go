package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fin-extract/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock pools satisfy it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgSaveRecord = `INSERT INTO records (id, content_hash, filename, success, error_kind, body, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (content_hash) DO UPDATE SET
	filename = EXCLUDED.filename,
	success = EXCLUDED.success,
	error_kind = EXCLUDED.error_kind,
	body = EXCLUDED.body,
	updated_at = EXCLUDED.updated_at
RETURNING id`
	pgGetRecord       = `SELECT id, body FROM records WHERE id = $1`
	pgGetRecordByHash = `SELECT id, body FROM records WHERE content_hash = $1`
)

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"save_record":        pgSaveRecord,
	"get_record":         pgGetRecord,
	"get_record_by_hash": pgGetRecordByHash,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	content_hash TEXT NOT NULL UNIQUE,
	filename     TEXT NOT NULL,
	success      BOOLEAN NOT NULL,
	error_kind   TEXT NOT NULL DEFAULT '',
	body         JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_success ON records(success);
CREATE INDEX IF NOT EXISTS idx_records_updated_at ON records(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_records_error_kind ON records(error_kind) WHERE NOT success;
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRecord(ctx context.Context, r *model.Record) error {
	body, kind, err := encode(r)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	var id string
	err = s.pool.QueryRow(ctx, pgSaveRecord,
		uuid.New().String(), r.ContentHash, r.Filename, r.Success, kind, body, now, now,
	).Scan(&id)
	if err != nil {
		return eris.Wrapf(err, "postgres: save record %s", r.Filename)
	}
	r.ID = id
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, pgGetRecord, id).Scan(&id, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", id)
	}
	return decode(id, body)
}

func (s *PostgresStore) GetRecordByHash(ctx context.Context, hash string) (*model.Record, error) {
	var (
		id   string
		body []byte
	)
	err := s.pool.QueryRow(ctx, pgGetRecordByHash, hash).Scan(&id, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get record by hash")
	}
	return decode(id, body)
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter Filter) ([]model.Record, error) {
	query := `SELECT id, body FROM records WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Failed {
		query += ` AND NOT success`
	}
	query += fmt.Sprintf(` ORDER BY updated_at DESC, id LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		rec, err := decode(id, body)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records iterate")
}
