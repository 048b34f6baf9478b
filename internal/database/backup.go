package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"campsite/internal/config"

	"github.com/rs/zerolog"
)

const (
	backupStampLayout  = "20060102_150405"
	defaultBackupEvery = 24 * time.Hour
)

// campsite_<stamp>.db holds the snapshot, campsite_<stamp>.json its report.
var backupFilePattern = regexp.MustCompile(`^campsite_(\d{8}_\d{6})\.(db|json)$`)

// BackupReport describes one snapshot. Orphaned counts reservations whose
// allocations have no link, which cancel and update treat as inconsistent.
type BackupReport struct {
	Path         string    `json:"path"`
	CreatedAt    time.Time `json:"created_at"`
	Reservations int       `json:"reservations"`
	Allocations  int       `json:"allocations"`
	Guests       int       `json:"guests"`
	Links        int       `json:"links"`
	Orphaned     int       `json:"orphaned"`
}

// BackupService snapshots the SQLite store with VACUUM INTO and keeps
// RetentionDays worth of snapshots.
type BackupService struct {
	db     *DB
	config config.BackupConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{db: db, config: cfg, logger: logger, now: time.Now}
}

func (s *BackupService) interval() time.Duration {
	if s.config.Schedule == "" {
		return defaultBackupEvery
	}
	d, err := time.ParseDuration(s.config.Schedule)
	if err != nil || d <= 0 {
		s.logger.Warn().Err(err).Str("schedule", s.config.Schedule).Msg("Invalid backup schedule, using 24h")
		return defaultBackupEvery
	}
	return d
}

// Start snapshots immediately and then on every tick until ctx is done.
func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backup service is disabled")
		return
	}

	every := s.interval()
	s.logger.Info().Dur("every", every).Str("dir", s.config.StoragePath).Msg("Backup service started")

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if _, err := s.PerformBackup(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("Backup failed")
		}
		s.CleanupOldBackups()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PerformBackup writes a snapshot and its JSON report next to it.
func (s *BackupService) PerformBackup(ctx context.Context) (*BackupReport, error) {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	createdAt := s.now().UTC()
	base := filepath.Join(s.config.StoragePath, "campsite_"+createdAt.Format(backupStampLayout))
	report := &BackupReport{Path: base + ".db", CreatedAt: createdAt}

	quoted := strings.ReplaceAll(report.Path, "'", "''")
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		return nil, fmt.Errorf("vacuum into %s: %w", report.Path, err)
	}

	if err := countSnapshot(ctx, report); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(base+".json", data, 0o644); err != nil {
		return nil, fmt.Errorf("write backup report: %w", err)
	}

	event := s.logger.Info()
	if report.Orphaned > 0 {
		event = s.logger.Warn()
	}
	event.Str("path", report.Path).
		Int("reservations", report.Reservations).
		Int("allocations", report.Allocations).
		Int("guests", report.Guests).
		Int("links", report.Links).
		Int("orphaned", report.Orphaned).
		Msg("Backup completed")
	return report, nil
}

// countSnapshot reads the counts back from the written file, so a report
// only exists for a snapshot that opens.
func countSnapshot(ctx context.Context, report *BackupReport) error {
	snapshot, err := sql.Open("sqlite3", "file:"+report.Path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer snapshot.Close()

	queries := []struct {
		dst   *int
		query string
	}{
		{&report.Allocations, `SELECT COUNT(*) FROM allocations`},
		{&report.Reservations, `SELECT COUNT(DISTINCT reservation_id) FROM allocations`},
		{&report.Guests, `SELECT COUNT(*) FROM guests`},
		{&report.Links, `SELECT COUNT(*) FROM links`},
		{&report.Orphaned, `SELECT COUNT(DISTINCT a.reservation_id) FROM allocations a
			LEFT JOIN links l ON l.reservation_id = a.reservation_id WHERE l.reservation_id IS NULL`},
	}
	for _, q := range queries {
		if err := snapshot.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return fmt.Errorf("verify snapshot: %w", err)
		}
	}
	return nil
}

// CleanupOldBackups removes snapshots and reports whose name stamp is older
// than RetentionDays. Other files in the directory are left alone.
func (s *BackupService) CleanupOldBackups() int {
	if s.config.RetentionDays <= 0 {
		return 0
	}

	files, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read backup directory for cleanup")
		return 0
	}

	cutoff := s.now().UTC().AddDate(0, 0, -s.config.RetentionDays)
	removed := 0
	for _, file := range files {
		match := backupFilePattern.FindStringSubmatch(file.Name())
		if file.IsDir() || match == nil {
			continue
		}
		stamp, err := time.Parse(backupStampLayout, match[1])
		if err != nil || !stamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.config.StoragePath, file.Name())); err != nil {
			s.logger.Warn().Err(err).Str("file", file.Name()).Msg("Failed to delete old backup")
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Old backups deleted")
	}
	return removed
}
