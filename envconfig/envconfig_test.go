package envconfig

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestGetEnv(t *testing.T) {
	t.Setenv("UTILZ_FOO", "bar")
	unsetenv(t, "UTILZ_NOT_SET")

	if got := GetEnv("UTILZ_FOO", ""); got != "bar" {
		t.Errorf("got %q", got)
	}
	if got := GetEnv("UTILZ_NOT_SET", "baz"); got != "baz" {
		t.Errorf("got %q", got)
	}

	t.Run("cast", func(t *testing.T) {
		t.Setenv("UTILZ_PORT", "8080")
		port, err := GetEnvAs("UTILZ_PORT", 0, Int)
		if err != nil || port != 8080 {
			t.Errorf("got %d, %v", port, err)
		}
		if d, err := GetEnvAs("UTILZ_NOT_SET", 7, Int); err != nil || d != 7 {
			t.Errorf("default = %d, %v", d, err)
		}
	})

	t.Run("cast failure", func(t *testing.T) {
		t.Setenv("UTILZ_PORT", "not_an_int")
		_, err := GetEnvAs("UTILZ_PORT", 0, Int)
		if !errors.Is(err, ErrInvalidArgument) || !strings.Contains(err.Error(), "UTILZ_PORT") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		t.Setenv("UTILZ_HOSTS", " a, b ,,c ")
		got, _ := GetEnvAs("UTILZ_HOSTS", nil, List)
		if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
			t.Errorf("got %v", got)
		}
	})
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("USER", "alice")
	t.Setenv("A", "1")
	t.Setenv("B", "2")
	t.Setenv("EMPTY", "")
	unsetenv(t, "C", "NOT_SET")

	cases := []struct {
		in, def, want string
	}{
		{"User: $USER, Foo: ${FOO}", "", "User: alice, Foo: bar"},
		{"Path: $NOT_SET", "", "Path: "},
		{"Path: $NOT_SET", "none", "Path: none"},
		{"$A-$B-$C", "x", "1-2-x"},
		{"${NOT_SET:-fallback}/${FOO:-other}", "", "fallback/bar"},
		{"${EMPTY:-fallback}", "", "fallback"},
		{"", "", ""},
		{"No variables here", "", "No variables here"},
	}
	for _, tc := range cases {
		if got := ExpandEnv(tc.in, tc.def); got != tc.want {
			t.Errorf("ExpandEnv(%q, %q) = %q, want %q", tc.in, tc.def, got, tc.want)
		}
	}
}

func TestLoadDotenv(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		unsetenv(t, "UTILZ_DOT_FOO", "UTILZ_DOT_BAZ")
		path := writeFile(t, "config.env", "UTILZ_DOT_FOO=bar\nUTILZ_DOT_BAZ=qux\n")
		if err := LoadDotenv(path, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if os.Getenv("UTILZ_DOT_FOO") != "bar" || os.Getenv("UTILZ_DOT_BAZ") != "qux" {
			t.Error("variables not loaded")
		}
	})

	t.Run("override", func(t *testing.T) {
		path := writeFile(t, "config.env", "UTILZ_EXISTING=new\n")

		t.Setenv("UTILZ_EXISTING", "old")
		_ = LoadDotenv(path, false)
		if got := os.Getenv("UTILZ_EXISTING"); got != "old" {
			t.Errorf("without override got %q", got)
		}
		_ = LoadDotenv(path, true)
		if got := os.Getenv("UTILZ_EXISTING"); got != "new" {
			t.Errorf("with override got %q", got)
		}
	})

	t.Run("comments and malformed lines", func(t *testing.T) {
		unsetenv(t, "UTILZ_VAR1", "UTILZ_VAR2")
		path := writeFile(t, "config.env", "# comment\nUTILZ_VAR1=value1\n\nMALFORMED_LINE\n# another\nUTILZ_VAR2=value2\n")
		if err := LoadDotenv(path, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if os.Getenv("UTILZ_VAR1") != "value1" || os.Getenv("UTILZ_VAR2") != "value2" {
			t.Errorf("got %q %q", os.Getenv("UTILZ_VAR1"), os.Getenv("UTILZ_VAR2"))
		}
	})

	t.Run("quoted values", func(t *testing.T) {
		unsetenv(t, "UTILZ_Q1", "UTILZ_Q2")
		path := writeFile(t, "quoted.env", "UTILZ_Q1=\"quoted value\"\nUTILZ_Q2='single quoted'\n")
		_ = LoadDotenv(path, false)
		if os.Getenv("UTILZ_Q1") != "quoted value" || os.Getenv("UTILZ_Q2") != "single quoted" {
			t.Errorf("got %q %q", os.Getenv("UTILZ_Q1"), os.Getenv("UTILZ_Q2"))
		}
	})

	t.Run("missing and empty files", func(t *testing.T) {
		if err := LoadDotenv(filepath.Join(t.TempDir(), "nonexistent.env"), false); err != nil {
			t.Errorf("missing file: %v", err)
		}
		if err := LoadDotenv(writeFile(t, "empty.env", ""), false); err != nil {
			t.Errorf("empty file: %v", err)
		}
	})

	t.Run("read does not set", func(t *testing.T) {
		unsetenv(t, "UTILZ_READ_ONLY")
		vars, err := ReadDotenv(writeFile(t, "r.env", "UTILZ_READ_ONLY=1\n"))
		if err != nil || vars["UTILZ_READ_ONLY"] != "1" {
			t.Fatalf("got %v, %v", vars, err)
		}
		if _, ok := os.LookupEnv("UTILZ_READ_ONLY"); ok {
			t.Error("ReadDotenv modified the environment")
		}
	})
}

func TestParseINI(t *testing.T) {
	content := "[section1]\na = 1\n\n[section2]\nB = 2\n"

	t.Run("basic", func(t *testing.T) {
		got, err := ParseINI(writeFile(t, "config.ini", content), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := map[string]map[string]string{"section1": {"a": "1"}, "section2": {"b": "2"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v", got)
		}
	})

	t.Run("required sections", func(t *testing.T) {
		path := writeFile(t, "config.ini", "[section1]\na = 1\n")
		_, err := ParseINI(path, &Options{RequiredSections: []string{"section1", "section2"}})
		var missing *MissingError
		if !errors.As(err, &missing) || !strings.Contains(err.Error(), "Missing required config sections: section2") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("required keys", func(t *testing.T) {
		path := writeFile(t, "config.ini", content)
		if _, err := ParseINI(path, &Options{RequiredKeys: []string{"section1.a", "section2.b"}}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		_, err := ParseINI(path, &Options{RequiredKeys: []string{"section1.c"}})
		if err == nil || err.Error() != "Missing required config keys: section1.c" {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("validator", func(t *testing.T) {
		path := writeFile(t, "config.ini", "[section1]\na = 1\n")
		_, err := ParseINI(path, &Options{Validate: func(cfg map[string]any) error {
			if _, ok := cfg["section2"]; !ok {
				return errors.New("section2 required")
			}
			return nil
		}})
		if err == nil || err.Error() != "section2 required" {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("file not found", func(t *testing.T) {
		_, err := ParseINI(filepath.Join(t.TempDir(), "missing.ini"), nil)
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("no section header", func(t *testing.T) {
		_, err := ParseINI(writeFile(t, "config.ini", "key=value\n"), nil)
		if !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestParseTOML(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		got, err := ParseTOML(writeFile(t, "config.toml", "a = 1\n\n[b]\nc = 2\n"), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := map[string]any{"a": int64(1), "b": map[string]any{"c": int64(2)}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %#v", got)
		}
	})

	t.Run("required keys", func(t *testing.T) {
		_, err := ParseTOML(writeFile(t, "config.toml", "a = 1\n"), &Options{RequiredKeys: []string{"a", "b"}})
		if err == nil || !strings.Contains(err.Error(), "Missing required config keys: b") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("validator", func(t *testing.T) {
		_, err := ParseTOML(writeFile(t, "config.toml", "a = 1\n"), &Options{Validate: func(cfg map[string]any) error {
			if _, ok := cfg["b"]; !ok {
				return errors.New("b required")
			}
			return nil
		}})
		if err == nil || err.Error() != "b required" {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := ParseTOML(writeFile(t, "config.toml", "a = = 1\n"), nil); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("unexpected error: %v", err)
		}
		if _, err := ParseTOML(filepath.Join(t.TempDir(), "missing.toml"), nil); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestParseYAML(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		got, err := ParseYAML(writeFile(t, "config.yaml", "a: 1\nb:\n  c: 2\n"), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := map[string]any{"a": 1, "b": map[string]any{"c": 2}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %#v", got)
		}
	})

	t.Run("nested required key", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "a: 1\nb:\n  c: 2\n")
		if _, err := ParseYAML(path, &Options{RequiredKeys: []string{"b.c"}, RequiredSections: []string{"b"}}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if _, err := ParseYAML(path, &Options{RequiredSections: []string{"a"}}); err == nil {
			t.Error("scalar accepted as section")
		}
	})

	t.Run("required keys", func(t *testing.T) {
		_, err := ParseYAML(writeFile(t, "config.yaml", "a: 1\n"), &Options{RequiredKeys: []string{"a", "b"}})
		if err == nil || !strings.Contains(err.Error(), "Missing required config keys") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("root must be a mapping", func(t *testing.T) {
		_, err := ParseYAML(writeFile(t, "config.yaml", "- 1\n- 2\n"), nil)
		if !errors.Is(err, ErrInvalidFormat) || !strings.Contains(err.Error(), "must be a dictionary") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("invalid and empty", func(t *testing.T) {
		if _, err := ParseYAML(writeFile(t, "config.yaml", "a: [1, 2\n"), nil); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("unexpected error: %v", err)
		}
		got, err := ParseYAML(writeFile(t, "empty.yaml", ""), nil)
		if err != nil || len(got) != 0 {
			t.Errorf("empty document = %v, %v", got, err)
		}
	})
}

func TestKeys(t *testing.T) {
	if got := Keys(map[string]any{"b": 1, "a": 2}); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("got %v", got)
	}
}
