// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Seoul must resolve in minimal containers

	"github.com/joho/godotenv"

	"github.com/Thetason/korean-stock-daily-report/internal/calendar"
	"github.com/Thetason/korean-stock-daily-report/internal/utils"
)

// DefaultRunTime is the scheduled slot, a few minutes after the session
// close threshold so the calendar gate lets the tick through.
const DefaultRunTime = "16:20"

// Config holds application configuration
type Config struct {
	DataDir    string // Raw snapshot cache and sqlite files (always absolute)
	ReportsDir string // Rendered reports and JSON backups (always absolute)
	LogLevel   string
	LogFile    string
	Port       int
	DevMode    bool
	Timezone   string

	Schedule  ScheduleConfig
	Collector CollectorConfig
	Analysis  AnalysisConfig
	Sources   SourcesConfig
	Render    RenderConfig
	Email     EmailConfig
	Backup    BackupConfig
}

// ScheduleConfig controls the weekday report trigger
type ScheduleConfig struct {
	RunTime     string        // HH:MM local time, weekdays only
	GraceWindow time.Duration // How late a trigger may still fire
	Enabled     bool
}

// CollectorConfig bounds the batched universe collection
type CollectorConfig struct {
	BatchSize      int
	MaxParallel    int
	RequestsPerSec float64
	CacheSnapshots bool // Keep snapshot_YYYYMMDD.msgpack next to the data dir
	RetentionDays  int  // Snapshot cache retention, 0 keeps everything
}

// AnalysisConfig holds classification thresholds
type AnalysisConfig struct {
	SurgeThreshold  float64
	PlungeThreshold float64
	MaxSurge        int
	MaxPlunge       int
	VolumeTopN      int
	SectorDBPath    string // Optional sqlite table of ticker -> sector overrides
}

// SourcesConfig locates the upstream data providers
type SourcesConfig struct {
	MarketDataURL   string
	FallbackDataURL string
	MarketDataKey   string
	NewsURLs        []string
	MaxHeadlines    int
	RequestTimeout  time.Duration
}

// RenderConfig controls HTML/PDF output
type RenderConfig struct {
	PDFEnabled  bool
	PDFFontPath string // UTF-8 TTF font; without it no PDF is produced
}

// EmailConfig configures the optional report mail-out
type EmailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

// BackupConfig configures the optional S3-compatible backup mirror
type BackupConfig struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := ensureDir(getEnv("REPORT_DATA_DIR", "data"))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}
	reportsDir, err := ensureDir(getEnv("REPORT_OUTPUT_DIR", "reports"))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare reports directory: %w", err)
	}

	cfg := &Config{
		DataDir:    dataDir,
		ReportsDir: reportsDir,
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFile:    getEnv("LOG_FILE", ""),
		Port:       getEnvAsInt("HTTP_PORT", 8010),
		DevMode:    getEnvAsBool("DEV_MODE", false),
		Timezone:   getEnv("MARKET_TIMEZONE", "Asia/Seoul"),
		Schedule: ScheduleConfig{
			RunTime:     getEnv("SCHEDULE_TIME", DefaultRunTime),
			GraceWindow: getEnvAsDuration("SCHEDULE_GRACE", 5*time.Minute),
			Enabled:     getEnvAsBool("SCHEDULE_ENABLED", true),
		},
		Collector: CollectorConfig{
			BatchSize:      getEnvAsInt("COLLECT_BATCH_SIZE", 500),
			MaxParallel:    getEnvAsInt("COLLECT_MAX_PARALLEL", 4),
			RequestsPerSec: getEnvAsFloat("COLLECT_RPS", 5),
			CacheSnapshots: getEnvAsBool("COLLECT_CACHE_SNAPSHOTS", true),
			RetentionDays:  getEnvAsInt("SNAPSHOT_RETENTION_DAYS", 30),
		},
		Analysis: AnalysisConfig{
			SurgeThreshold:  getEnvAsFloat("SURGE_THRESHOLD", 5.0),
			PlungeThreshold: getEnvAsFloat("PLUNGE_THRESHOLD", -5.0),
			MaxSurge:        getEnvAsInt("MAX_SURGE", 50),
			MaxPlunge:       getEnvAsInt("MAX_PLUNGE", 30),
			VolumeTopN:      getEnvAsInt("VOLUME_TOP_N", 20),
			SectorDBPath:    getEnv("SECTOR_DB_PATH", ""),
		},
		Sources: SourcesConfig{
			MarketDataURL:   getEnv("MARKET_DATA_URL", ""),
			FallbackDataURL: getEnv("MARKET_DATA_FALLBACK_URL", ""),
			MarketDataKey:   getEnv("MARKET_DATA_API_KEY", ""),
			NewsURLs:        utils.ParseCSV(getEnv("NEWS_URLS", "https://finance.naver.com/news/news_list.naver?mode=LSS2D&section_id=101&section_id2=258")),
			MaxHeadlines:    getEnvAsInt("NEWS_MAX_HEADLINES", 20),
			RequestTimeout:  getEnvAsDuration("SOURCE_TIMEOUT", 10*time.Second),
		},
		Render: RenderConfig{
			PDFEnabled:  getEnvAsBool("PDF_ENABLED", true),
			PDFFontPath: getEnv("PDF_FONT_PATH", ""),
		},
		Email: EmailConfig{
			Host:       getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Username:   getEnv("SMTP_USERNAME", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			From:       getEnv("SMTP_FROM", ""),
			Recipients: utils.ParseCSV(getEnv("EMAIL_RECIPIENTS", "")),
		},
		Backup: BackupConfig{
			Bucket:    getEnv("BACKUP_S3_BUCKET", ""),
			Endpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
			Region:    getEnv("BACKUP_S3_REGION", "auto"),
			AccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
			Prefix:    getEnv("BACKUP_S3_PREFIX", "daily-report/"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	hour, minute, err := ParseRunTime(c.Schedule.RunTime)
	if err != nil {
		return err
	}
	if hour*60+minute < calendar.DefaultCloseHour*60+calendar.DefaultCloseMinute {
		return fmt.Errorf("SCHEDULE_TIME %s is before the %02d:%02d session close, scheduled runs would always be rejected",
			c.Schedule.RunTime, calendar.DefaultCloseHour, calendar.DefaultCloseMinute)
	}
	if c.Schedule.GraceWindow < 0 {
		return fmt.Errorf("SCHEDULE_GRACE must not be negative")
	}
	if c.Collector.BatchSize <= 0 {
		return fmt.Errorf("COLLECT_BATCH_SIZE must be positive, got %d", c.Collector.BatchSize)
	}
	if c.Collector.MaxParallel <= 0 {
		c.Collector.MaxParallel = 1
	}
	if c.Collector.RetentionDays < 0 {
		c.Collector.RetentionDays = 0
	}
	if c.Analysis.SurgeThreshold <= 0 || c.Analysis.PlungeThreshold >= 0 {
		return fmt.Errorf("surge threshold must be positive and plunge threshold negative")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid MARKET_TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.Backup.Bucket != "" && (c.Backup.AccessKey == "" || c.Backup.SecretKey == "") {
		return fmt.Errorf("BACKUP_S3_BUCKET requires BACKUP_S3_ACCESS_KEY and BACKUP_S3_SECRET_KEY")
	}
	return nil
}

// Location returns the market timezone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SnapshotDir is where the collector caches raw snapshots
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.DataDir, "snapshots")
}

// EmailEnabled reports whether reports should be mailed
func (c *Config) EmailEnabled() bool {
	return len(c.Email.Recipients) > 0
}

// ParseRunTime splits an HH:MM string
func ParseRunTime(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid SCHEDULE_TIME %q, expected HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in SCHEDULE_TIME %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in SCHEDULE_TIME %q", s)
	}
	return hour, minute, nil
}

func ensureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", abs, err)
	}
	return abs, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
