package config

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"availcal/internal/model"
)

func TestEnvFromOS(t *testing.T) {
	env := EnvFromOS([]string{"A=1", "B=x=y", "=bad", "NOVALUE"})

	assert.Equal(t, Env{"A": "1", "B": "x=y"}, env)
}

func TestResolveSourcesDefaults(t *testing.T) {
	env := Env{
		"CALENDAR_WORK_URL":          "https://example.com/work.ics",
		"CALENDAR_WORK_COLOR":        "#ff0000",
		"CALENDAR_WORK_TITLE":        "Busy",
		"CALENDAR_WORK_SHOW_DETAILS": "false",
		"CALENDAR_HOME_URL":          "https://example.com/home.ics",
		"CALENDAR_HOME_SHOW_DETAILS": "yes",
		"UNRELATED_URL":              "https://example.com/other.ics",
	}

	sources, err := ResolveSources(env, "CALENDAR", "#123456")
	require.NoError(t, err)

	assert.Equal(t, []model.CalendarSource{
		{ID: "home", URL: "https://example.com/home.ics", Color: "#123456", Title: "HOME", Enabled: true, ShowDetails: true},
		{ID: "work", URL: "https://example.com/work.ics", Color: "#ff0000", Title: "Busy", Enabled: true, ShowDetails: false},
	}, sources)
}

func TestResolveSourcesCount(t *testing.T) {
	for _, n := range []int{1, 3, 12} {
		env := Env{}
		for i := 0; i < n; i++ {
			env[fmt.Sprintf("CALENDAR_SRC%d_URL", i)] = fmt.Sprintf("https://example.com/%d.ics", i)
		}

		sources, err := ResolveSources(env, "CALENDAR", "")
		require.NoError(t, err)
		require.Len(t, sources, n)

		seen := map[string]bool{}
		for _, s := range sources {
			assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
			seen[s.ID] = true
			assert.Equal(t, DefaultColor, s.Color)
			assert.False(t, s.ShowDetails)
			assert.True(t, s.Enabled)
		}
	}
}

func TestResolveSourcesDuplicateLastWins(t *testing.T) {
	env := Env{
		"CALENDAR_Team_URL": "https://example.com/a.ics",
		"CALENDAR_TEAM_URL": "https://example.com/b.ics",
		"CALENDAR_ZED_URL":  "https://example.com/z.ics",
	}

	sources, err := ResolveSources(env, "CALENDAR", "")
	require.NoError(t, err)
	require.Len(t, sources, 2)

	// "CALENDAR_TEAM_URL" sorts before "CALENDAR_Team_URL".
	assert.Equal(t, "team", sources[0].ID)
	assert.Equal(t, "https://example.com/a.ics", sources[0].URL)
	assert.Equal(t, "Team", sources[0].Title)
	assert.Equal(t, "zed", sources[1].ID)
}

func TestResolveSourcesLegacy(t *testing.T) {
	env := Env{"ICAL_URL": "https://example.com/legacy.ics", "ICAL_TITLE": "Me"}

	sources, err := ResolveSources(env, "ICAL", "")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "default", sources[0].ID)
	assert.Equal(t, "Me", sources[0].Title)
	assert.Equal(t, "https://example.com/legacy.ics", sources[0].URL)
}

func TestResolveSourcesEnabledAndInvalidBool(t *testing.T) {
	env := Env{
		"CALENDAR_A_URL":          "https://example.com/a.ics",
		"CALENDAR_A_ENABLED":      "off",
		"CALENDAR_A_SHOW_DETAILS": "maybe",
	}

	sources, err := ResolveSources(env, "CALENDAR", "")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.False(t, sources[0].Enabled)
	assert.False(t, sources[0].ShowDetails)
}

func TestResolveSourcesNone(t *testing.T) {
	sources, err := ResolveSources(Env{"CALENDAR_EMPTY_URL": "  "}, "CALENDAR", "")

	assert.ErrorIs(t, err, ErrNoSources)
	assert.Empty(t, sources)
}
