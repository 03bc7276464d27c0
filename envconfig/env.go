// Package envconfig reads settings from environment variables, dotenv files
// and INI, TOML or YAML documents.
//
// The Parse functions load a file into a generic map and then run
// ValidateConfig, which checks required keys and sections before handing the
// result to an optional validator:
//
//	cfg, err := envconfig.ParseYAML("service.yaml", &envconfig.Options{
//	    RequiredKeys: []string{"database.url", "port"},
//	})
package envconfig

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidArgument is wrapped by every input validation error.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidFormat is wrapped when a document cannot be parsed.
	ErrInvalidFormat = errors.New("invalid config format")
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// GetEnv returns the value of key, or def when it is unset.
func GetEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// GetEnvAs returns the value of key converted by cast, or def when it is
// unset. A value cast rejects is an error; def is never passed to cast.
func GetEnvAs[T any](key string, def T, cast func(string) (T, error)) (T, error) {
	if cast == nil {
		return def, invalidArgument("cast is required")
	}
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	v, err := cast(raw)
	if err != nil {
		return def, fmt.Errorf("%w: cannot convert %s=%q: %v", ErrInvalidArgument, key, raw, err)
	}
	return v, nil
}

// Casts for GetEnvAs.
var (
	Int      = strconv.Atoi
	Bool     = strconv.ParseBool
	Duration = time.ParseDuration
)

// Float parses a float64.
func Float(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

// List splits a comma separated value and trims each element. Empty
// elements are dropped.
func List(s string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}

// ExpandEnv replaces $VAR and ${VAR} in s with their values. Unset
// variables become def. ${VAR:-fallback} uses fallback instead when VAR is
// unset or empty.
func ExpandEnv(s, def string) string {
	return os.Expand(s, func(name string) string {
		if key, fallback, ok := strings.Cut(name, ":-"); ok {
			if v := os.Getenv(key); v != "" {
				return v
			}
			return fallback
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return def
	})
}
