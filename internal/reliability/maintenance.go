package reliability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/Thetason/korean-stock-daily-report/internal/database"
)

const (
	minMirrorCopies  = 3
	criticalFreeDisk = 500 << 20 // 500MB
	lowFreeDisk      = 5 << 30   // 5GB
)

var snapshotName = regexp.MustCompile(`^snapshot_(\d{8})\.msgpack$`)

// DiskUsage reports free bytes for the filesystem holding path
type DiskUsage func(path string) (uint64, error)

func gopsutilFree(path string) (uint64, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return u.Free, nil
}

// MaintenanceConfig controls the daily housekeeping job
type MaintenanceConfig struct {
	CacheDir      string // where snapshot_YYYYMMDD.msgpack files live
	RetentionDays int    // 0 keeps everything
}

// MaintenanceJob checks storage health and prunes old artifacts
type MaintenanceJob struct {
	cfg   MaintenanceConfig
	store *Store
	db    *database.DB
	free  DiskUsage
	now   func() time.Time
	log   zerolog.Logger
}

// NewMaintenanceJob creates the job. db may be nil.
func NewMaintenanceJob(cfg MaintenanceConfig, store *Store, db *database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		cfg:   cfg,
		store: store,
		db:    db,
		free:  gopsutilFree,
		now:   time.Now,
		log:   log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *MaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the job
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	j.log.Info().Msg("Starting daily maintenance")
	start := time.Now()

	if j.db != nil {
		if err := j.db.QuickCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", j.db.Name()).Msg("Integrity check failed")
		}
		if _, err := j.db.Conn().ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			j.log.Warn().Err(err).Msg("WAL checkpoint failed")
		}
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	pruned := j.pruneSnapshots()
	j.verifyLatestBackup()
	rotated := j.rotateMirror(ctx)

	j.log.Info().
		Dur("duration_ms", time.Since(start)).
		Int("snapshots_pruned", pruned).
		Int("mirror_rotated", rotated).
		Msg("Daily maintenance completed")
	return nil
}

func (j *MaintenanceJob) checkDiskSpace() error {
	free, err := j.free(j.store.Dir())
	if err != nil {
		j.log.Warn().Err(err).Msg("Disk usage unavailable")
		return nil
	}

	freeGB := float64(free) / 1e9
	switch {
	case free < criticalFreeDisk:
		j.log.Error().Float64("available_gb", freeGB).Msg("Insufficient disk space for reports")
		return fmt.Errorf("only %.2f GB free in %s", freeGB, j.store.Dir())
	case free < lowFreeDisk:
		j.log.Warn().Float64("available_gb", freeGB).Msg("Disk space running low")
	default:
		j.log.Debug().Float64("available_gb", freeGB).Msg("Disk space check")
	}
	return nil
}

// pruneSnapshots deletes raw snapshot caches older than the retention period.
// Backups and rendered reports are kept.
func (j *MaintenanceJob) pruneSnapshots() int {
	if j.cfg.RetentionDays <= 0 || j.cfg.CacheDir == "" {
		return 0
	}
	entries, err := os.ReadDir(j.cfg.CacheDir)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to read snapshot cache")
		return 0
	}

	cutoff := j.now().AddDate(0, 0, -j.cfg.RetentionDays).Format("20060102")
	pruned := 0
	for _, e := range entries {
		m := snapshotName.FindStringSubmatch(e.Name())
		if m == nil || m[1] >= cutoff {
			continue
		}
		if err := os.Remove(filepath.Join(j.cfg.CacheDir, e.Name())); err != nil {
			j.log.Warn().Err(err).Str("file", e.Name()).Msg("Failed to prune snapshot")
			continue
		}
		pruned++
	}
	return pruned
}

func (j *MaintenanceJob) verifyLatestBackup() {
	backups, err := j.store.List()
	if err != nil || len(backups) == 0 {
		return
	}
	latest := backups[0]
	date, _ := time.Parse("2006-01-02", latest.Date)
	if _, err := j.store.Load(date); err != nil {
		j.log.Error().Err(err).Str("path", latest.Path).Msg("Latest backup is unreadable")
		return
	}
	j.log.Debug().Str("date", latest.Date).Msg("Latest backup verified")
}

// rotateMirror deletes mirrored copies older than the retention period,
// always keeping the newest minMirrorCopies.
func (j *MaintenanceJob) rotateMirror(ctx context.Context) int {
	if j.store.mirror == nil || j.cfg.RetentionDays <= 0 {
		return 0
	}
	objects, err := j.store.mirror.List(ctx)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to list mirrored backups")
		return 0
	}
	if len(objects) <= minMirrorCopies {
		return 0
	}

	sort.Slice(objects, func(a, b int) bool {
		return objects[a].LastModified.After(objects[b].LastModified)
	})

	cutoff := j.now().AddDate(0, 0, -j.cfg.RetentionDays)
	deleted := 0
	for i, obj := range objects {
		if i < minMirrorCopies || !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := j.store.mirror.Delete(ctx, obj.Name); err != nil {
			j.log.Error().Err(err).Str("name", obj.Name).Msg("Failed to delete old mirrored backup")
			continue
		}
		deleted++
	}
	return deleted
}
