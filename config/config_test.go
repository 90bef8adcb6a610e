package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSONConfigGroupedSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"app": {"AppPort": "9090", "JWTSecret": "s3cret", "Timezone": "Africa/Lagos", "AllowedOrigins": ["https://club.example"]},
		"database": {"Driver": "postgres", "DBHost": "db", "DBName": "club"},
		"reading": {"DefaultDailyPageGoal": 12, "PageXP": 3},
		"admin": {"Emails": ["boss@book.club"]},
		"jobs": {"Enabled": true}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	var c AppConfig
	require.NoError(t, loadJSONConfig(path, &c))

	assert.Equal(t, "9090", c.AppPort)
	assert.Equal(t, "s3cret", c.JWTSecret)
	assert.Equal(t, "Africa/Lagos", c.AppTimezone)
	assert.Equal(t, []string{"https://club.example"}, c.AllowedOrigins)
	assert.Equal(t, "postgres", c.DBDriver)
	assert.Equal(t, "db", c.DBHost)
	assert.Equal(t, 12, c.DefaultDailyPageGoal)
	assert.Equal(t, 3, c.PageXP)
	assert.Equal(t, []string{"boss@book.club"}, c.AdminEmails)
	assert.True(t, c.JobsEnabled)
}

func TestLoadJSONConfigMissingFileIsIgnored(t *testing.T) {
	var c AppConfig
	assert.NoError(t, loadJSONConfig(filepath.Join(t.TempDir(), "nope.json"), &c))
	assert.Empty(t, c.AppPort)
}

func TestLoadJSONConfigInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var c AppConfig
	assert.Error(t, loadJSONConfig(path, &c))
}

func TestApplyDefaults(t *testing.T) {
	var c AppConfig
	applyDefaults(&c)

	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, "mysql", c.DBDriver)
	assert.Equal(t, "3306", c.DBPort)
	assert.Equal(t, 10, c.DefaultDailyPageGoal)
	assert.Equal(t, 30, c.PlanTargetDays)
	assert.Equal(t, 2, c.PageXP)
	assert.Equal(t, 1, c.ChapterXP)
	assert.Equal(t, 1, c.MissedDayPenalty)
	assert.Equal(t, []string{"admin@book.club"}, c.AdminEmails)
	assert.Equal(t, "https://picsum.photos/id/10/400/600", c.DefaultCoverImage)
	assert.Equal(t, "local", c.StorageDriver)
	assert.Equal(t, 72*time.Hour, c.TokenTTL())
}

func TestApplyDefaultsPostgresPort(t *testing.T) {
	c := AppConfig{DBDriver: "postgres"}
	applyDefaults(&c)
	assert.Equal(t, "5432", c.DBPort)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "7000")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("ADMIN_EMAILS", " a@x.io , ,b@x.io")
	t.Setenv("JOBS_ENABLED", "true")
	t.Setenv("PAGE_XP", "5")

	var c AppConfig
	applyDefaults(&c)
	applyEnvOverrides(&c)

	assert.Equal(t, "7000", c.AppPort)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, []string{"a@x.io", "b@x.io"}, c.AdminEmails)
	assert.True(t, c.JobsEnabled)
	assert.Equal(t, 5, c.PageXP)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, time.UTC, AppConfig{}.Location())
	assert.Equal(t, time.UTC, AppConfig{AppTimezone: "Mars/Olympus"}.Location())
	assert.Equal(t, time.Local, AppConfig{AppTimezone: "local"}.Location())

	loc := AppConfig{AppTimezone: "Europe/Berlin"}.Location()
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	_, err := Dialector(AppConfig{DBDriver: "oracle"})
	assert.Error(t, err)

	d, err := Dialector(AppConfig{DBDriver: "sqlite", DatabaseURI: "file::memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())
}
