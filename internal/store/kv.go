package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned by KV.Get when a key has never been written.
	ErrNotFound = errors.New("key not found")
	// ErrCorrupt is returned by LoadJSON when the stored value does not parse.
	ErrCorrupt = errors.New("stored value is corrupt")
)

// KV is the local persistent key-value storage. Values are whole documents:
// Set always overwrites the full value under a key.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend     string // file, memory, redis, postgres
	DataDir     string
	DatabaseURL string
	RedisAddr   string
	RedisPrefix string
}

// Open returns the KV for the configured backend.
func Open(ctx context.Context, opts Options) (KV, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "file":
		return NewFile(opts.DataDir)
	case "memory":
		return NewMemory(), nil
	case "redis":
		r := NewRedis(opts.RedisAddr, opts.RedisPrefix)
		return r, nil
	case "postgres", "pg":
		return NewPostgres(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// LoadJSON decodes the JSON document under key into v.
// It returns ErrNotFound when nothing is stored yet.
func LoadJSON(ctx context.Context, kv KV, key string, v interface{}) error {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return errors.Wrapf(ErrCorrupt, "parsing %s: %v", key, err)
	}
	return nil
}

// SaveJSON serializes v and overwrites key with it.
func SaveJSON(ctx context.Context, kv KV, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", key)
	}
	if err := kv.Set(ctx, key, string(data)); err != nil {
		return &WriteError{Key: key, Err: err}
	}
	return nil
}

// WriteError reports a value that could not be written. Callers keep their
// in-memory state, so the change is local only until the next good write.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string { return "writing " + e.Key + ": " + e.Err.Error() }

func (e *WriteError) Unwrap() error { return e.Err }
