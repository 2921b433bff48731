package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Loader resolves settings with database values first, then the environment, then defaults.
type Loader struct {
	stored func(name string) string
	getenv func(key string) string
}

// NewLoader builds a loader. stored may be nil when no settings table is available.
func NewLoader(stored func(name string) string, getenv func(key string) string) Loader {
	if stored == nil {
		stored = func(string) string { return "" }
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	return Loader{stored: stored, getenv: getenv}
}

// LoadDotEnv reads .env files into the process environment. Missing files are not an error.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			log.Printf("config: failed to load %s: %v", p, err)
		}
	}
}

// GetSetting retrieves a setting with env fallback
func (l Loader) GetSetting(name, envKey, defaultValue string) string {
	val := strings.TrimSpace(l.stored(name))
	if val == "" {
		val = strings.TrimSpace(l.getenv(envKey))
	}
	if val == "" {
		val = defaultValue
	}
	return val
}

// PositiveInt reads an integer setting, keeping the default for missing, malformed or non-positive values.
func (l Loader) PositiveInt(name, envKey string, defaultValue int) int {
	raw := l.GetSetting(name, envKey, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("config: ignoring %s=%q, using %d", envKey, raw, defaultValue)
		return defaultValue
	}
	return n
}

// Bool reads a boolean setting.
func (l Loader) Bool(name, envKey string, defaultValue bool) bool {
	raw := l.GetSetting(name, envKey, "")
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config: ignoring %s=%q, using %v", envKey, raw, defaultValue)
		return defaultValue
	}
	return b
}

// List reads a comma separated setting.
func (l Loader) List(name, envKey string, defaultValue []string) []string {
	raw := l.GetSetting(name, envKey, "")
	if raw == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
