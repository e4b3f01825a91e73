// Package store persists extracted records and serves them back as a cache
// keyed by document content hash.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fin-extract/internal/config"
	"github.com/sells-group/fin-extract/internal/model"
	"github.com/sells-group/fin-extract/internal/record"
)

// ErrNotFound is returned by GetRecord for an unknown id.
var ErrNotFound = eris.New("store: record not found")

// Filter specifies criteria for listing records.
type Filter struct {
	// Failed limits the listing to records with success=false.
	Failed bool `json:"failed,omitempty"`
	Limit  int  `json:"limit,omitempty"`
	Offset int  `json:"offset,omitempty"`
}

// Store defines the persistence interface for extracted records.
type Store interface {
	// SaveRecord validates r and upserts it by content hash. r.ID is set to
	// the stored id; re-saving a document keeps its id.
	SaveRecord(ctx context.Context, r *model.Record) error
	GetRecord(ctx context.Context, id string) (*model.Record, error)
	// GetRecordByHash returns nil, nil when no record exists for hash.
	GetRecordByHash(ctx context.Context, hash string) (*model.Record, error)
	ListRecords(ctx context.Context, filter Filter) ([]model.Record, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.Driver and migrates it.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "fin-extract.db"
		}
		st, err = NewSQLite(dsn)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

const defaultListLimit = 100

func listLimit(f Filter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// encode validates r and returns its JSON body and error kind column.
func encode(r *model.Record) ([]byte, string, error) {
	if r.ContentHash == "" {
		return nil, "", eris.Errorf("store: record %q has no content hash", r.Filename)
	}
	if err := record.Validate(r); err != nil {
		return nil, "", err
	}
	body, err := json.Marshal(r)
	if err != nil {
		return nil, "", eris.Wrap(err, "store: marshal record")
	}
	kind := ""
	if r.Diagnostic != nil {
		kind = string(r.Diagnostic.Kind)
	}
	return body, kind, nil
}

func decode(id string, body []byte) (*model.Record, error) {
	var r model.Record
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal record %s", id)
	}
	r.ID = id
	return &r, nil
}
