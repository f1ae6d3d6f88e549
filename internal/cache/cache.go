// Package cache persists completed FreeTDS installations as version-keyed
// tarballs so later runs can skip the native build.
//
// A cache hit is a pure existence check on the version-keyed archive file.
// Nothing validates that a hit was built with the currently requested
// protocol version or feature flags; the BoltDB index records those
// parameters per entry so an operator can inspect a suspect hit, but it is
// informational only.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/legitfish/heroku-buildpack-freetds/internal/tarball"
)

const (
	// indexFile is the BoltDB index filename inside the cache directory
	indexFile = "cache.db"

	// bucketName is the BoltDB bucket for artifact metadata
	bucketName = "artifacts"
)

// Cache stores one artifact archive per version plus a metadata index.
type Cache struct {
	db   *bbolt.DB
	root string
}

// Open creates the cache directory if needed and opens the metadata index.
func Open(cacheDir string) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(cacheDir, indexFile), 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache index: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &Cache{
		db:   db,
		root: cacheDir,
	}, nil
}

// Close closes the metadata index.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}

	return nil
}

// Save packages the installed tree at installDir into a single archive at
// cacheFilePath and records the entry's build parameters in the index. The
// archive replaces any previous entry for the same version outright.
//
// Callers must only invoke Save after the installed tree passed its smoke
// test; a partially built tree must never reach the cache.
func (c *Cache) Save(installDir, cacheFilePath string, entry Entry) error {
	f, err := os.Create(cacheFilePath)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}

	if err := tarball.Compress(installDir, f); err != nil {
		f.Close()
		os.Remove(cacheFilePath)
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to finalize cache file: %w", err)
	}

	entry.CreatedAt = time.Now()
	if info, err := os.Stat(cacheFilePath); err == nil {
		entry.SizeBytes = info.Size()
	}

	return c.record(entry)
}

// Restore extracts the archive at cacheFilePath into destDir, reproducing
// the relative layout that was packed.
func (c *Cache) Restore(cacheFilePath, destDir string) error {
	f, err := os.Open(cacheFilePath)
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	if _, err := tarball.Extract(f, destDir); err != nil {
		return fmt.Errorf("failed to restore cache into %s: %w", destDir, err)
	}

	return nil
}

// Get retrieves the recorded metadata for a version. Returns nil on a
// miss; an archive written by an older tool version may have no entry.
func (c *Cache) Get(version string) (*Entry, error) {
	var entry Entry
	found := false

	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(version))
		if data == nil {
			return nil
		}

		found = true
		return json.Unmarshal(data, &entry)
	})
	if err != nil || !found {
		return nil, err
	}

	return &entry, nil
}

func (c *Cache) record(entry Entry) error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return tx.Bucket([]byte(bucketName)).Put([]byte(entry.Version), data)
	})
	if err != nil {
		return fmt.Errorf("failed to record cache entry: %w", err)
	}

	return nil
}
