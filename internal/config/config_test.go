package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("CAMPSITE_DB_PATH", filepath.Join(tmpDir, "campsite.db"))

	yamlContent := `
app:
  name: campsite
database:
  path: "${CAMPSITE_DB_PATH}"
redis:
  address: "localhost:6379"
policy:
  max_stay_days: 3
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, filepath.Join(tmpDir, "campsite.db"), cfg.Database.Path)
	assert.Equal(t, 3, cfg.Policy.MaxStayDays)
	assert.Equal(t, 1, cfg.Policy.MaxAdvanceMonths)
	assert.Equal(t, 1, cfg.Policy.DefaultWindowMonths)
	assert.Equal(t, 12, cfg.Policy.MaxWindowMonths)
	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, 600, cfg.Redis.CacheTTL)
	assert.Equal(t, "campsite.reservations", cfg.RabbitMQ.Exchange)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	policy := PolicyConfig{MaxStayDays: 3, MaxAdvanceMonths: 1, DefaultWindowMonths: 1, MaxWindowMonths: 12}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid sqlite",
			cfg: Config{
				Database: DatabaseConfig{Driver: DriverSQLite, Path: "campsite.db"},
				Policy:   policy,
			},
		},
		{
			name: "missing sqlite path",
			cfg: Config{
				Database: DatabaseConfig{Driver: DriverSQLite},
				Policy:   policy,
			},
			wantErr: true,
		},
		{
			name: "valid postgres",
			cfg: Config{
				Database: DatabaseConfig{Driver: DriverPostgres, Postgres: PostgresConfig{Host: "db", DBName: "campsite"}},
				Policy:   policy,
			},
		},
		{
			name: "postgres without host",
			cfg: Config{
				Database: DatabaseConfig{Driver: DriverPostgres},
				Policy:   policy,
			},
			wantErr: true,
		},
		{
			name: "unknown driver",
			cfg: Config{
				Database: DatabaseConfig{Driver: "oracle", Path: "x"},
				Policy:   policy,
			},
			wantErr: true,
		},
		{
			name: "zero policy",
			cfg: Config{
				Database: DatabaseConfig{Driver: DriverSQLite, Path: "campsite.db"},
			},
			wantErr: true,
		},
		{
			name: "default window wider than max window",
			cfg: Config{
				Database: DatabaseConfig{Driver: DriverSQLite, Path: "campsite.db"},
				Policy:   PolicyConfig{MaxStayDays: 3, MaxAdvanceMonths: 1, DefaultWindowMonths: 13, MaxWindowMonths: 12},
			},
			wantErr: true,
		},
		{
			name: "rabbitmq without url",
			cfg: Config{
				Database: DatabaseConfig{Driver: DriverSQLite, Path: "campsite.db"},
				Policy:   policy,
				RabbitMQ: RabbitMQConfig{Enabled: true},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadShippedConfig(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Policy.MaxStayDays)
	assert.Equal(t, "campsite.reservations", cfg.RabbitMQ.Exchange)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.Empty(t, cfg.Redis.Address)
	assert.Equal(t, "./backups", cfg.Backup.StoragePath)
}
