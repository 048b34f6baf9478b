package database

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"campsite/internal/config"
	"campsite/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedReservation(t *testing.T, db *DB, day int, withLink bool) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	date := time.Date(2024, 6, day, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.InsertAllocations(ctx, []*models.Allocation{{Date: date, ReservationID: id}}))
	if !withLink {
		return id
	}
	guest := &models.Guest{Email: id.String() + "@x.com", Name: "G"}
	require.NoError(t, db.InsertGuest(ctx, guest))
	require.NoError(t, db.InsertLink(ctx, &models.Link{ReservationID: id, GuestID: guest.ID}))
	return id
}

func TestBackupService(t *testing.T) {
	tempDir := t.TempDir()
	storagePath := filepath.Join(tempDir, "backups")

	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(tempDir, "source.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	seedReservation(t, db, 10, true)
	seedReservation(t, db, 11, true)
	seedReservation(t, db, 12, false)

	now := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
	s := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: storagePath, RetentionDays: 7}, &logger)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	report, err := s.PerformBackup(ctx)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(storagePath, "campsite_20240601_030000.db"), report.Path)
	assert.Equal(t, 3, report.Reservations)
	assert.Equal(t, 3, report.Allocations)
	assert.Equal(t, 2, report.Guests)
	assert.Equal(t, 2, report.Links)
	assert.Equal(t, 1, report.Orphaned)

	raw, err := os.ReadFile(filepath.Join(storagePath, "campsite_20240601_030000.json"))
	require.NoError(t, err)
	var written BackupReport
	require.NoError(t, json.Unmarshal(raw, &written))
	assert.Equal(t, *report, written)

	restored, err := NewDB(report.Path, &logger)
	require.NoError(t, err)
	defer restored.Close()
	allocs, err := restored.AllocationsInRange(ctx, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, allocs, 3)
}

func TestBackupService_CleanupOldBackups(t *testing.T) {
	storagePath := t.TempDir()
	logger := zerolog.Nop()

	for _, name := range []string{
		"campsite_20240520_030000.db",
		"campsite_20240520_030000.json",
		"campsite_20240528_030000.db",
		"campsite_20240528_030000.json",
		"notes.txt",
		"campsite_old.db",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(storagePath, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(storagePath, "campsite_20240101_000000.db"), 0o755))

	s := NewBackupService(nil, config.BackupConfig{StoragePath: storagePath, RetentionDays: 7}, &logger)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC) }

	assert.Equal(t, 2, s.CleanupOldBackups())

	entries, err := os.ReadDir(storagePath)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"campsite_20240101_000000.db",
		"campsite_20240528_030000.db",
		"campsite_20240528_030000.json",
		"campsite_old.db",
		"notes.txt",
	}, names)

	s.config.RetentionDays = 0
	assert.Zero(t, s.CleanupOldBackups())
}

func TestBackupService_Interval(t *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(nil, config.BackupConfig{Schedule: "6h"}, &logger)
	assert.Equal(t, 6*time.Hour, s.interval())

	s.config.Schedule = "nightly"
	assert.Equal(t, defaultBackupEvery, s.interval())

	s.config.Schedule = ""
	assert.Equal(t, defaultBackupEvery, s.interval())
}

func TestBackupService_Disabled(_ *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(nil, config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)
}

func TestBackupService_StartStopsOnCancel(t *testing.T) {
	tempDir := t.TempDir()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(tempDir, "source.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	s := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: filepath.Join(tempDir, "backups"), Schedule: "1h"}, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(filepath.Join(tempDir, "backups"))
		return err == nil && len(entries) == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("backup service did not stop")
	}
}
