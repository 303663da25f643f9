package hashes

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"watchdag/pkg/logx"
)

// fileStore keeps digests in a flat text file, one "path digest" pair
// per line, loaded fully into memory and rewritten atomically. Paths
// may contain spaces, digests never do, so the digest is the last
// field.
type fileStore struct {
	log  logx.Logger
	path string

	mu      sync.Mutex
	entries map[string]string
	dirty   int
}

// flushEvery bounds how many writes accumulate before the file gets
// rewritten. The store also flushes on Close.
const flushEvery = 32

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("hashes.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	entries := map[string]string{}
	if err := loadEntries(path, entries); err != nil {
		return nil, err
	}
	log.Debug("hash store loaded",
		logx.String("path", path),
		logx.Int("entries", len(entries)))

	return &fileStore{log: log, path: path, entries: entries}, nil
}

func loadEntries(path string, into map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		i := strings.LastIndexByte(line, ' ')
		if i <= 0 {
			continue
		}
		into[line[:i]] = line[i+1:]
	}
	return sc.Err()
}

func (s *fileStore) Get(_ context.Context, path string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.entries[path]
	return d, ok, nil
}

func (s *fileStore) Put(_ context.Context, path, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[path] == digest {
		return nil
	}
	s.entries[path] = digest
	s.dirty++
	if s.dirty >= flushEvery {
		return s.flushLocked()
	}
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty == 0 {
		return nil
	}
	return s.flushLocked()
}

func (s *fileStore) flushLocked() error {
	paths := make([]string, 0, len(s.entries))
	for p := range s.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "%s %s\n", p, s.entries[p])
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	s.dirty = 0
	return nil
}
