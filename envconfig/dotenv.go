package envconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultDotenv is the file LoadDotenv reads when path is empty.
const DefaultDotenv = ".env"

// LoadDotenv sets the variables defined in the dotenv file at path. Existing
// variables are only replaced when override is true. A missing file is not an
// error. Lines without an assignment are skipped.
func LoadDotenv(path string, override bool) error {
	vars, err := ReadDotenv(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for k, v := range vars {
		if _, set := os.LookupEnv(k); set && !override {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

// ReadDotenv parses the dotenv file at path without touching the
// environment.
func ReadDotenv(path string) (map[string]string, error) {
	if path == "" {
		path = DefaultDotenv
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	vars, err := godotenv.Unmarshal(assignments(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, path, err)
	}
	return vars, nil
}

// assignments drops the lines godotenv would read as part of a key name.
func assignments(src string) string {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") && !strings.ContainsAny(trimmed, "=:") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
