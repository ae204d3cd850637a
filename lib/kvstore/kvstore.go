package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("sgassist.lib.kvstore")

const schema = `create table if not exists kv (
	key text primary key,
	value text not null,
	updated_at integer not null
)`

// Config selects where values live. A Url takes precedence over File and
// points at a remote libsql database, so a queue can be shared between
// machines.
type Config struct {
	File      string `json:"file" env:"SGASSIST_DB"`
	Url       string `json:"url" env:"SGASSIST_DB_URL"`
	AuthToken string `json:"auth_token" env:"SGASSIST_DB_AUTH_TOKEN"`
}

// Store is a small persistent string key/value table.
type Store struct {
	db *sql.DB
}

func Open(cfg Config) (Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return Store{}, err
	}
	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return Store{}, fmt.Errorf("create kv schema: %w", err)
	}
	return Store{db: db}, nil
}

func openDB(cfg Config) (*sql.DB, error) {
	if cfg.Url != "" {
		dsn := cfg.Url
		if cfg.AuthToken != "" {
			u, err := url.Parse(cfg.Url)
			if err != nil {
				return nil, err
			}
			q := u.Query()
			q.Set("authToken", cfg.AuthToken)
			u.RawQuery = q.Encode()
			dsn = u.String()
		}
		return sql.Open("libsql", dsn)
	}

	path := cfg.File
	if path == "" {
		return nil, fmt.Errorf("a kv store path was not specified")
	}
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0700)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer, and every :memory: connection
	// would otherwise get its own empty database
	db.SetMaxOpenConns(1)
	if path != ":memory:" {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func (s Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key, ok is false when it is absent.
func (s Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	ctx, span := tracer.Start(ctx, "Get")
	defer span.End()
	span.SetAttributes(attribute.String("key", key))

	row := s.db.QueryRowContext(ctx, "select value from kv where key = ?", key)
	err = row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read key")
		return "", false, err
	}
	return value, true, nil
}

func (s Store) Set(ctx context.Context, key, value string) error {
	ctx, span := tracer.Start(ctx, "Set")
	defer span.End()
	span.SetAttributes(attribute.String("key", key))

	_, err := s.db.ExecContext(
		ctx,
		`insert into kv(key, value, updated_at) values (?, ?, ?)
		on conflict(key) do update set value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write key")
	}
	return err
}

func (s Store) Delete(ctx context.Context, keys ...string) error {
	ctx, span := tracer.Start(ctx, "Delete")
	defer span.End()

	for _, key := range keys {
		_, err := s.db.ExecContext(ctx, "delete from kv where key = ?", key)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to delete key")
			return err
		}
	}
	return nil
}

// GetJSON decodes the value under key into out, ok is false when absent.
func GetJSON[T any](ctx context.Context, s Store, key string) (out T, ok bool, err error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return out, ok, err
	}
	err = json.Unmarshal([]byte(raw), &out)
	if err != nil {
		return out, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, true, nil
}

func SetJSON[T any](ctx context.Context, s Store, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(raw))
}
