package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"campsite/internal/database"
	"campsite/internal/domain"
	"campsite/internal/models"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	color.NoColor = true

	dir := t.TempDir()
	cfg := fmt.Sprintf(`app:
  name: campsite
database:
  driver: sqlite
  path: %[1]s/campsite.db
backup:
  storage_path: %[1]s/backups
  retention_days: 7
exports:
  path: %[1]s/exports
`, dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path, dir
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", configPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func futureDate(days int) string {
	return models.Day(time.Now().UTC()).AddDate(0, 0, days).Format(models.DateLayout)
}

func TestReservationLifecycle(t *testing.T) {
	configPath, dir := writeConfig(t)

	out, err := run(t, configPath, "book", "--json",
		"--start", futureDate(3), "--end", futureDate(5),
		"--email", "ann@example.com", "--name", "Ann")
	require.NoError(t, err)

	var booked map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &booked))
	id := booked["id"]
	require.NotEmpty(t, id)

	out, err = run(t, configPath, "show", "--json", id)
	require.NoError(t, err)
	var reservation models.Reservation
	require.NoError(t, json.Unmarshal([]byte(out), &reservation))
	assert.Equal(t, []string{futureDate(3), futureDate(4), futureDate(5)}, reservation.Dates)
	require.NotNil(t, reservation.Guest)
	assert.Equal(t, "ann@example.com", reservation.Guest.Email)

	out, err = run(t, configPath, "availability", "--json", "--start", futureDate(2), "--end", futureDate(6))
	require.NoError(t, err)
	var availability models.Availability
	require.NoError(t, json.Unmarshal([]byte(out), &availability))
	assert.True(t, availability[futureDate(2)])
	assert.False(t, availability[futureDate(4)])
	assert.True(t, availability[futureDate(6)])

	_, err = run(t, configPath, "book",
		"--start", futureDate(5), "--end", futureDate(6),
		"--email", "bob@example.com", "--name", "Bob")
	assert.ErrorIs(t, err, domain.ErrDateConflict)

	out, err = run(t, configPath, "update", id, "--start", futureDate(7), "--end", futureDate(8), "--name", "Ann B")
	require.NoError(t, err)
	assert.Contains(t, out, "updated")

	out, err = run(t, configPath, "export", "--json", "--start", futureDate(1), "--end", futureDate(10))
	require.NoError(t, err)
	var exported map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &exported))
	assert.FileExists(t, exported["path"])
	assert.Equal(t, filepath.Join(dir, "exports"), filepath.Dir(exported["path"]))

	out, err = run(t, configPath, "cancel", "--json", id)
	require.NoError(t, err)
	var result domain.CancelResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, domain.CancelResult{AllocationsDeleted: 2, LinkDeleted: true, GuestDeleted: true}, result)

	_, err = run(t, configPath, "show", id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestValidationErrors(t *testing.T) {
	configPath, _ := writeConfig(t)

	_, err := run(t, configPath, "cancel", "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = run(t, configPath, "book",
		"--start", futureDate(5), "--end", futureDate(3),
		"--email", "ann@example.com", "--name", "Ann")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = run(t, configPath, "book", "--start", "06/01/2024", "--end", futureDate(3),
		"--email", "ann@example.com", "--name", "Ann")
	assert.Error(t, err)

	_, err = run(t, configPath, "availability", "--start", futureDate(1))
	assert.Error(t, err)
}

func TestBackup(t *testing.T) {
	configPath, dir := writeConfig(t)

	_, err := run(t, configPath, "book",
		"--start", futureDate(3), "--end", futureDate(4),
		"--email", "ann@example.com", "--name", "Ann")
	require.NoError(t, err)

	out, err := run(t, configPath, "backup", "--json")
	require.NoError(t, err)

	var report database.BackupReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, filepath.Join(dir, "backups"), filepath.Dir(report.Path))
	assert.Equal(t, 1, report.Reservations)
	assert.Equal(t, 2, report.Allocations)
	assert.Equal(t, 1, report.Guests)
	assert.Zero(t, report.Orphaned)

	entries, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestMissingConfig(t *testing.T) {
	_, err := run(t, filepath.Join(t.TempDir(), "absent.yaml"), "backup")
	assert.ErrorContains(t, err, "load config")
}
