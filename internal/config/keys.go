package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// secretKeys may never be written to the file.
var secretKeys = map[string]bool{
	"openai.api_key": true,
}

// Keys returns every settable dotted key, sorted.
func Keys() []string {
	flat, err := flatten(Default())
	if err != nil {
		return nil
	}
	return slices.Sorted(maps.Keys(flat))
}

// Get returns the value of a dotted key from the file over the defaults.
// Environment overrides are not applied.
func Get(key string) (string, error) {
	all, err := List()
	if err != nil {
		return "", err
	}
	v, ok := all[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return v, nil
}

// List returns every dotted key with its value from the file over the defaults.
func List() (map[string]string, error) {
	p, err := Path()
	if err != nil {
		return nil, err
	}
	cfg, err := readFile(p, false)
	if err != nil {
		return nil, err
	}
	return flatten(cfg)
}

// Set writes one dotted key to the config file. The value is parsed as a YAML
// scalar ("5", "90s", "gpt-4o"), and the resulting file must still decode
// and validate. Other keys and their layout are preserved.
func Set(key, value string) error {
	if secretKeys[key] {
		return fmt.Errorf("%w: %s (use %s)", ErrSecretKey, key, EnvAPIKey)
	}
	if !slices.Contains(Keys(), key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	p, err := Path()
	if err != nil {
		return err
	}

	raw := map[string]any{}
	data, err := os.ReadFile(p) // #nosec G304 -- config path is constructed from config dir
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("failed to read config: %w", err)
	}

	var scalar any
	if err := yaml.Unmarshal([]byte(value), &scalar); err != nil || scalar == nil {
		scalar = value
	}
	setPath(raw, strings.Split(key, "."), scalar)

	out, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	cfg := Default()
	if err := decode(out, &cfg); err != nil {
		return fmt.Errorf("%w: %s=%q: %w", ErrInvalid, key, value, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil { // #nosec G301 -- user config dir
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	if err := os.WriteFile(p, out, 0600); err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}
	return nil
}

// setPath stores v at the nested path, creating maps as needed.
func setPath(m map[string]any, path []string, v any) {
	for _, k := range path[:len(path)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[k] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

// flatten renders cfg as dotted keys through its YAML form, so durations
// appear as "1m0s" rather than nanoseconds.
func flatten(cfg Config) (map[string]string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	out := make(map[string]string)
	flattenInto(out, "", tree)
	return out, nil
}

func flattenInto(out map[string]string, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flattenInto(out, key, sub)
			continue
		}
		if v == nil {
			out[key] = ""
			continue
		}
		out[key] = fmt.Sprint(v)
	}
}
