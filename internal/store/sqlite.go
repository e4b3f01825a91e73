package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fin-extract/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	id           TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL UNIQUE,
	filename     TEXT NOT NULL,
	success      INTEGER NOT NULL,
	error_kind   TEXT NOT NULL DEFAULT '',
	body         TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_records_success ON records(success);
CREATE INDEX IF NOT EXISTS idx_records_updated_at ON records(updated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, r *model.Record) error {
	body, kind, err := encode(r)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	var id string
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO records (id, content_hash, filename, success, error_kind, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(content_hash) DO UPDATE SET
			filename = excluded.filename,
			success = excluded.success,
			error_kind = excluded.error_kind,
			body = excluded.body,
			updated_at = excluded.updated_at
		 RETURNING id`,
		uuid.New().String(), r.ContentHash, r.Filename, r.Success, kind, string(body), now, now,
	).Scan(&id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save record %s", r.Filename)
	}
	r.ID = id
	return nil
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, body FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) GetRecordByHash(ctx context.Context, hash string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, body FROM records WHERE content_hash = ?`, hash)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get record by hash")
	}
	return rec, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter Filter) ([]model.Record, error) {
	query := `SELECT id, body FROM records WHERE 1=1`
	var args []any

	if filter.Failed {
		query += ` AND success = 0`
	}
	query += ` ORDER BY updated_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.Record, error) {
	var id, body string
	if err := row.Scan(&id, &body); err != nil {
		return nil, err
	}
	return decode(id, []byte(body))
}
