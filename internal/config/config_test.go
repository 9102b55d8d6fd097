package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"availcal/internal/model"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	fsys := afero.NewMemMapFs()

	cfg, err := Load(fsys, "/etc/availcal/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := fsys.Stat("/etc/availcal/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().Perm().String())

	again, err := Load(fsys, "/etc/availcal/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	yml := `
listen: ":9000"
week_start: friday
fetch_timeout: 5s
default_view: fortnight
day_start: "07:30"
day_end: "06:00"
breakpoint: -1
`
	require.NoError(t, afero.WriteFile(fsys, "/cfg.yaml", []byte(yml), 0o600))

	cfg, err := Load(fsys, "/cfg.yaml")
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "monday", cfg.WeekStart)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, model.ViewWeek, cfg.DefaultView)
	assert.Equal(t, "07:30", cfg.DayStart)
	assert.Equal(t, DefaultDayEnd, cfg.DayEnd)
	assert.Equal(t, DefaultBreakpoint, cfg.Breakpoint)
	assert.Equal(t, DefaultEnvPrefix, cfg.EnvPrefix)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/cfg.yaml", []byte("listen: [unterminated"), 0o600))

	_, err := Load(fsys, "/cfg.yaml")
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	cfg := DefaultConfig()
	cfg.Timezone = "Europe/Berlin"
	cfg.DefaultView = model.ViewMonth

	require.NoError(t, cfg.Save(fsys, "/data/config.yaml"))

	loaded, err := Load(fsys, "/data/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "")
	assert.Error(t, err)
}

func TestLocationFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Not/AZone"
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestWeekStartDay(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Monday, cfg.WeekStartDay())
	cfg.WeekStart = "sunday"
	assert.Equal(t, time.Sunday, cfg.WeekStartDay())
}
