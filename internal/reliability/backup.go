// Package reliability persists the per-date JSON backup of each analysis
// result, mirrors it to S3-compatible storage and runs housekeeping.
package reliability

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
	"github.com/Thetason/korean-stock-daily-report/internal/utils"
)

// ErrBackupNotFound is returned when no backup exists for a date
var ErrBackupNotFound = errors.New("backup not found")

var backupName = regexp.MustCompile(`^report_data_(\d{8})\.json$`)

// BackupInfo describes one local backup file
type BackupInfo struct {
	Date      string    `json:"date"` // YYYY-MM-DD
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"modified_at"`
}

// Store reads and writes report_data_YYYYMMDD.json
type Store struct {
	dir    string
	mirror Mirror
	log    zerolog.Logger
}

// NewStore creates a backup store in dir. mirror may be nil.
func NewStore(dir string, mirror Mirror, log zerolog.Logger) *Store {
	return &Store{
		dir:    dir,
		mirror: mirror,
		log:    log.With().Str("service", "backup").Logger(),
	}
}

// Dir returns the backup directory
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the backup path for date
func (s *Store) Path(date time.Time) string {
	return filepath.Join(s.dir, fileName(date.Format("20060102")))
}

func fileName(dateKey string) string {
	return "report_data_" + dateKey + ".json"
}

// Exists reports whether a backup for date has been written
func (s *Store) Exists(date time.Time) bool {
	return utils.FileExists(s.Path(date))
}

// Save writes the backup atomically and then mirrors it. Mirror failures are
// logged and never fail the save.
func (s *Store) Save(ctx context.Context, res *domain.AnalysisResult) (string, error) {
	date, err := time.Parse("2006-01-02", res.ReportDate)
	if err != nil {
		return "", fmt.Errorf("invalid report date %q: %w", res.ReportDate, err)
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode backup: %w", err)
	}

	path := s.Path(date)
	if err := utils.WriteFileAtomic(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	s.log.Info().Str("path", path).Int("bytes", len(data)).Msg("Backup written")

	if s.mirror != nil {
		key := filepath.Base(path)
		if err := s.mirror.Upload(ctx, key, data, checksum(data)); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to mirror backup")
		}
	}
	return path, nil
}

// Load reads the backup for date
func (s *Store) Load(date time.Time) (*domain.AnalysisResult, error) {
	data, err := os.ReadFile(s.Path(date))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBackupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}

	var res domain.AnalysisResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to decode backup %s: %w", s.Path(date), err)
	}
	return &res, nil
}

// List returns every local backup, newest date first
func (s *Store) List() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	out := make([]BackupInfo, 0, len(entries))
	for _, e := range entries {
		m := backupName.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		d, err := time.Parse("20060102", m[1])
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, BackupInfo{
			Date:      d.Format("2006-01-02"),
			Path:      filepath.Join(s.dir, e.Name()),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Date > out[j].Date
	})
	return out, nil
}

func checksum(data []byte) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256(data))
}
