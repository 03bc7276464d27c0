package envconfig

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Options controls the checks ValidateConfig runs. A nil *Options checks
// nothing.
type Options struct {
	// RequiredKeys are dotted paths that must resolve, e.g. "database.url".
	RequiredKeys []string
	// RequiredSections are top-level keys whose values must be tables.
	RequiredSections []string
	// Validate runs last, on a config that passed the other checks.
	Validate func(map[string]any) error
}

// MissingError lists required keys or sections absent from a config.
type MissingError struct {
	Kind  string
	Names []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("Missing required config %s: %s", e.Kind, strings.Join(e.Names, ", "))
}

// ValidateConfig checks cfg against opts. Missing sections are reported
// before missing keys.
func ValidateConfig(cfg map[string]any, opts *Options) error {
	if opts == nil {
		return nil
	}
	var sections []string
	for _, name := range opts.RequiredSections {
		if _, ok := cfg[name].(map[string]any); !ok {
			sections = append(sections, name)
		}
	}
	if len(sections) > 0 {
		return &MissingError{Kind: "sections", Names: sections}
	}

	var keys []string
	for _, path := range opts.RequiredKeys {
		if _, ok := Lookup(cfg, path); !ok {
			keys = append(keys, path)
		}
	}
	if len(keys) > 0 {
		return &MissingError{Kind: "keys", Names: keys}
	}

	if opts.Validate != nil {
		return opts.Validate(cfg)
	}
	return nil
}

// Lookup resolves a dotted path through nested tables. A key containing a
// dot is matched whole before the path is split.
func Lookup(cfg map[string]any, path string) (any, bool) {
	if v, ok := cfg[path]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(path, ".")
	if !found {
		return nil, false
	}
	sub, ok := cfg[head].(map[string]any)
	if !ok {
		return nil, false
	}
	return Lookup(sub, rest)
}

// ParseINI reads an INI file into sections of string values. Keys are
// lower-cased. The file must start with a section header.
func ParseINI(path string, opts *Options) (map[string]map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := requireSectionHeader(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, path, err)
	}
	f, err := ini.LoadSources(ini.LoadOptions{InsensitiveKeys: true}, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, path, err)
	}

	out := make(map[string]map[string]string)
	generic := make(map[string]any)
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection && len(sec.Keys()) == 0 {
			continue
		}
		values := make(map[string]string, len(sec.Keys()))
		table := make(map[string]any, len(sec.Keys()))
		for _, k := range sec.Keys() {
			values[k.Name()] = k.String()
			table[k.Name()] = k.String()
		}
		out[sec.Name()] = values
		generic[sec.Name()] = table
	}
	if err := ValidateConfig(generic, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func requireSectionHeader(data []byte) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		if line[0] != '[' {
			return fmt.Errorf("file contains no section headers, first line %q", line)
		}
		return nil
	}
	return sc.Err()
}

// ParseTOML reads a TOML file.
func ParseTOML(path string, opts *Options) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := make(map[string]any)
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, path, err)
	}
	if err := ValidateConfig(cfg, opts); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseYAML reads a YAML file whose root is a mapping. An empty document is
// an empty config.
func ParseYAML(path string, opts *Options) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var root any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, path, err)
	}
	if root == nil {
		root = map[string]any{}
	}
	cfg, ok := normalize(root).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: config root must be a dictionary, got %T", ErrInvalidFormat, path, root)
	}
	if err := ValidateConfig(cfg, opts); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize turns the map[any]any yaml produces for non-string keys into
// map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	default:
		return v
	}
}

// Keys returns the top-level keys of cfg in sorted order.
func Keys(cfg map[string]any) []string {
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
