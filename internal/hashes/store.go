package hashes

import (
	"context"
	"errors"
	"strings"
	"time"

	"watchdag/pkg/logx"
)

// Store is the minimal persistence API for path digests.
type Store interface {
	Get(ctx context.Context, path string) (digest string, ok bool, err error)
	Put(ctx context.Context, path, digest string) error
	Close() error
}

// Config selects and tunes the digest store.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration
}

// Open initializes the configured store. Driver "none" returns
// (nil, nil); callers then skip hash gating entirely.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown hashes driver: " + driver)
	}
}
