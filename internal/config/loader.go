package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// includeKey pulls other files into the document or section that names it.
// Keys written next to the directive win over included ones.
const includeKey = "$include"

type fileFormat int

const (
	formatYAML fileFormat = iota
	formatJSON5
	formatTOML
)

func formatOf(path string) fileFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".json5":
		return formatJSON5
	case ".toml":
		return formatTOML
	default:
		return formatYAML
	}
}

// LoadRaw reads a configuration file into a raw map with every $include
// resolved. An include at the top level merges a whole config; an include
// inside a section, such as database, merges a file holding just that
// section's keys. The format follows the extension: .json and .json5 are
// JSON5, .toml is TOML, anything else is YAML.
func LoadRaw(path string) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path is required")
	}
	return (&includeResolver{}).load(path)
}

// includeResolver tracks the chain of files being loaded.
type includeResolver struct {
	chain []string
}

func (r *includeResolver) load(path string) (map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if slices.Contains(r.chain, abs) {
		return nil, fmt.Errorf("config include cycle: %s", strings.Join(append(r.chain, abs), " -> "))
	}
	r.chain = append(r.chain, abs)
	defer func() { r.chain = r.chain[:len(r.chain)-1] }()

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(formatOf(abs), []byte(expandEnv(string(data))))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", abs, err)
	}
	return r.resolve(doc, filepath.Dir(abs), "")
}

// resolve expands the includes of doc and, at the top level, of each section.
func (r *includeResolver) resolve(doc map[string]any, dir, section string) (map[string]any, error) {
	paths, err := takeIncludes(doc, section)
	if err != nil {
		return nil, err
	}

	merged := map[string]any{}
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		included, err := r.load(p)
		if err != nil {
			return nil, err
		}
		merged = mergeMaps(merged, included)
	}

	if section == "" {
		for key, value := range doc {
			body, ok := value.(map[string]any)
			if !ok {
				continue
			}
			resolved, err := r.resolve(body, dir, key)
			if err != nil {
				return nil, err
			}
			doc[key] = resolved
		}
	}
	return mergeMaps(merged, doc), nil
}

// takeIncludes removes the include directive from doc and returns its paths.
func takeIncludes(doc map[string]any, section string) ([]string, error) {
	value, ok := doc[includeKey]
	if !ok {
		return nil, nil
	}
	delete(doc, includeKey)

	where := "top level"
	if section != "" {
		where = section
	}
	var paths []string
	switch typed := value.(type) {
	case string:
		paths = []string{typed}
	case []any:
		for _, entry := range typed {
			s, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("%s: %s entries must be strings", where, includeKey)
			}
			paths = append(paths, s)
		}
	default:
		return nil, fmt.Errorf("%s: %s must be a path or a list of paths", where, includeKey)
	}
	return slices.DeleteFunc(paths, func(p string) bool { return strings.TrimSpace(p) == "" }), nil
}

// expandEnv substitutes ${VAR} and $VAR references, leaving the include
// directive intact.
func expandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		if "$"+key == includeKey {
			return includeKey
		}
		return os.Getenv(key)
	})
}

func decodeDocument(format fileFormat, data []byte) (map[string]any, error) {
	doc := map[string]any{}
	switch format {
	case formatJSON5:
		if err := json5.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case formatTOML:
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, err
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&doc); err != nil && err != io.EOF {
			return nil, err
		}
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			return nil, fmt.Errorf("expected a single YAML document")
		}
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for key, value := range src {
		if valueMap, ok := value.(map[string]any); ok {
			if existing, ok := dst[key].(map[string]any); ok {
				dst[key] = mergeMaps(existing, valueMap)
				continue
			}
		}
		dst[key] = value
	}
	return dst
}

// decodeStrict maps the merged document onto Config, rejecting unknown keys.
func decodeStrict(raw map[string]any) (*Config, error) {
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(payload))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// envOverrides are applied on top of the file. Empty variables are ignored.
var envOverrides = []struct {
	name  string
	apply func(*Config, string) error
}{
	{"WHITEBOARD_HOST", func(c *Config, v string) error { c.Server.Host = v; return nil }},
	{"WHITEBOARD_PORT", func(c *Config, v string) error {
		port, err := strconv.Atoi(v)
		c.Server.HTTPPort = port
		return err
	}},
	{"WHITEBOARD_DATABASE_DRIVER", func(c *Config, v string) error { c.Database.Driver = v; return nil }},
	{"WHITEBOARD_DATABASE_URL", func(c *Config, v string) error { c.Database.URL = v; return nil }},
	{"WHITEBOARD_SERIALIZE_WRITES", func(c *Config, v string) error {
		on, err := strconv.ParseBool(v)
		c.Store.SerializeWrites = on
		return err
	}},
	{"WHITEBOARD_LOG_LEVEL", func(c *Config, v string) error { c.Logging.Level = v; return nil }},
	{"WHITEBOARD_LOG_FORMAT", func(c *Config, v string) error { c.Logging.Format = v; return nil }},
	{"WHITEBOARD_TRACING_ENDPOINT", func(c *Config, v string) error {
		c.Tracing.Endpoint = v
		c.Tracing.Enabled = true
		return nil
	}},
	{"WHITEBOARD_SYNC_POLL_INTERVAL", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		c.Sync.PollInterval = d
		return err
	}},
}

// driverURLEnv names the variable a driver reads its URL from when
// database.url is empty.
var driverURLEnv = map[string]string{
	DriverPostgres: "DATABASE_URL",
	DriverRedis:    "REDIS_URL",
}

// ApplyEnv overlays WHITEBOARD_* overrides onto cfg, then fills an empty
// database.url from the driver's conventional variable.
func ApplyEnv(cfg *Config) error {
	var issues []string
	for _, o := range envOverrides {
		v := strings.TrimSpace(os.Getenv(o.name))
		if v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			issues = append(issues, fmt.Sprintf("%s %q: %v", o.name, v, err))
		}
	}
	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}

	if strings.TrimSpace(cfg.Database.URL) == "" {
		driver := strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
		if name, ok := driverURLEnv[driver]; ok {
			cfg.Database.URL = os.Getenv(name)
		}
	}
	return nil
}
