package collector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
	"github.com/Thetason/korean-stock-daily-report/internal/utils"
)

// ErrCacheMiss is returned when no snapshot is cached for a date
var ErrCacheMiss = errors.New("snapshot not cached")

// SnapshotCache stores raw snapshots as snapshot_YYYYMMDD.msgpack
type SnapshotCache struct {
	dir string
}

// NewSnapshotCache creates a cache rooted at dir
func NewSnapshotCache(dir string) *SnapshotCache {
	return &SnapshotCache{dir: dir}
}

// Path returns the cache file for date
func (c *SnapshotCache) Path(date time.Time) string {
	return filepath.Join(c.dir, fmt.Sprintf("snapshot_%s.msgpack", date.Format("20060102")))
}

// Load reads the cached snapshot for date
func (c *SnapshotCache) Load(date time.Time) (*domain.MarketSnapshot, error) {
	data, err := os.ReadFile(c.Path(date))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot cache: %w", err)
	}

	var snap domain.MarketSnapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot cache: %w", err)
	}
	return &snap, nil
}

// Save writes the snapshot via a temp file and rename
func (c *SnapshotCache) Save(date time.Time, snap *domain.MarketSnapshot) error {
	data, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return utils.WriteFileAtomic(c.Path(date), data, 0644)
}

// Remove deletes the cached snapshot for date, if any
func (c *SnapshotCache) Remove(date time.Time) error {
	err := os.Remove(c.Path(date))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
