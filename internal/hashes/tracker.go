package hashes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"watchdag/pkg/logx"
)

// removedDigest is stored for paths that no longer exist, so a delete
// followed by an identical re-create still counts as two changes.
const removedDigest = "-"

// Tracker answers whether a path's content actually changed since the
// last time it was seen. A nil store means hashing is disabled and
// every event counts as a change.
type Tracker struct {
	store Store
	log   logx.Logger
}

func NewTracker(store Store, log logx.Logger) *Tracker {
	return &Tracker{store: store, log: log.With(logx.String("component", "hashes"))}
}

// Changed digests the file at path and compares against the stored
// value, updating it when different. Unreadable paths (permission
// errors, races with deletion) are reported as changed so no trigger
// is ever lost to a hashing hiccup.
func (t *Tracker) Changed(ctx context.Context, path string) bool {
	if t == nil || t.store == nil {
		return true
	}

	digest, err := digestFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			digest = removedDigest
		} else {
			t.log.Debug("hashing failed", logx.String("path", path), logx.Err(err))
			return true
		}
	}

	prev, ok, err := t.store.Get(ctx, path)
	if err != nil {
		t.log.Warn("hash lookup failed", logx.String("path", path), logx.Err(err))
		return true
	}
	if ok && prev == digest {
		return false
	}
	if err := t.store.Put(ctx, path, digest); err != nil {
		t.log.Warn("hash update failed", logx.String("path", path), logx.Err(err))
	}
	return true
}

// Close flushes the underlying store.
func (t *Tracker) Close() error {
	if t == nil || t.store == nil {
		return nil
	}
	return t.store.Close()
}

func digestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
