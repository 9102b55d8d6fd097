package config

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	appLog "availcal/internal/log"
	"availcal/internal/model"
)

// ErrNoSources means the environment did not yield a single feed URL.
var ErrNoSources = errors.New("no calendar source configured")

// legacyID is the id given to the unnamed <PREFIX>_URL source.
const legacyID = "default"

// Env is a snapshot of environment-style key/value pairs taken once at
// startup and handed to whoever needs it.
type Env map[string]string

// EnvFromOS builds an Env from os.Environ()-style "KEY=VALUE" entries.
func EnvFromOS(environ []string) Env {
	env := make(Env, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

// ResolveSources discovers calendar sources from keys of the form
// <PREFIX>_<NAME>_URL plus their _COLOR, _TITLE, _SHOW_DETAILS and _ENABLED
// siblings. An unnamed <PREFIX>_URL is accepted as the "default" source.
//
// Keys are visited in lexicographic order. When two names lower-case to the
// same id the later one replaces the earlier one in place.
//
// If nothing resolves, the empty list is returned together with ErrNoSources.
//
// Example with prefix CALENDAR:
//
//	CALENDAR_WORK_URL=https://example.com/work.ics   -> id "work", title "WORK"
//	CALENDAR_WORK_COLOR=#ff0000                       -> color (default defaultColor)
//	CALENDAR_WORK_TITLE=Office                        -> title (default from name)
//	CALENDAR_WORK_SHOW_DETAILS=true                   -> real titles (default false)
//	CALENDAR_WORK_ENABLED=no                          -> start hidden (default true)
//	CALENDAR_URL=https://example.com/cal.ics          -> id "default", title "Calendar"
func ResolveSources(env Env, prefix, defaultColor string) ([]model.CalendarSource, error) {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	if defaultColor == "" {
		defaultColor = DefaultColor
	}
	head := prefix + "_"

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sources := make([]model.CalendarSource, 0)
	index := make(map[string]int)

	add := func(src model.CalendarSource) {
		if i, ok := index[src.ID]; ok {
			appLog.Warn("duplicate calendar source id; last one wins", "id", src.ID)
			sources[i] = src
			return
		}
		index[src.ID] = len(sources)
		sources = append(sources, src)
	}

	// Legacy single source first so a named DEFAULT entry overrides it.
	if url := strings.TrimSpace(env[head+"URL"]); url != "" {
		add(buildSource(env, head, legacyID, "Calendar", url, defaultColor))
	}

	for _, k := range keys {
		if k == head+"URL" || !strings.HasPrefix(k, head) || !strings.HasSuffix(k, "_URL") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(k, head), "_URL")
		if name == "" {
			continue
		}
		url := strings.TrimSpace(env[k])
		if url == "" {
			continue
		}
		add(buildSource(env, head+name+"_", strings.ToLower(name), name, url, defaultColor))
	}

	if len(sources) == 0 {
		return sources, ErrNoSources
	}
	return sources, nil
}

func buildSource(env Env, keyPrefix, id, defaultTitle, url, defaultColor string) model.CalendarSource {
	src := model.CalendarSource{
		ID:          id,
		URL:         url,
		Color:       defaultColor,
		Title:       defaultTitle,
		Enabled:     true,
		ShowDetails: false,
	}
	if v := strings.TrimSpace(env[keyPrefix+"COLOR"]); v != "" {
		src.Color = v
	}
	if v := strings.TrimSpace(env[keyPrefix+"TITLE"]); v != "" {
		src.Title = v
	}
	src.ShowDetails = envBool(env, keyPrefix+"SHOW_DETAILS", src.ShowDetails)
	src.Enabled = envBool(env, keyPrefix+"ENABLED", src.Enabled)
	return src
}

func envBool(env Env, key string, def bool) bool {
	raw, ok := env[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := parseBool(raw)
	if err != nil {
		appLog.Warn("ignoring invalid boolean", "key", key, "value", raw)
		return def
	}
	return v
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}
