package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"strconv"
	"strings"
)

// tree is the JSON object form of a Config, addressed by dot paths.
type tree = map[string]any

func toTree(cfg *Config) (tree, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m tree
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetByPath retrieves a config value by dot-notation path (e.g. "general.deployment").
func GetByPath(cfg *Config, path string) (any, error) {
	m, err := toTree(cfg)
	if err != nil {
		return nil, err
	}
	var node any = m
	for _, key := range strings.Split(path, ".") {
		obj, ok := node.(tree)
		if !ok {
			return nil, fmt.Errorf("cannot traverse into %T at %s", node, key)
		}
		if node, ok = obj[key]; !ok {
			return nil, fmt.Errorf("key not found: %s", path)
		}
	}
	return node, nil
}

// SetByPath sets a config value by dot-notation path. The path is checked
// against the Config fields and raw is parsed as the field's type.
func SetByPath(cfg *Config, path string, raw string) error {
	ft, err := fieldType(path)
	if err != nil {
		return err
	}
	value, err := parseAs(ft, raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	m, err := toTree(cfg)
	if err != nil {
		return err
	}
	keys := strings.Split(path, ".")
	parent := m
	for _, key := range keys[:len(keys)-1] {
		child, ok := parent[key].(tree)
		if !ok {
			child = tree{}
			parent[key] = child
		}
		parent = child
	}
	parent[keys[len(keys)-1]] = value

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

// fieldType resolves a dot path to the Go type of the field it names. Map
// levels (providers) accept any key.
func fieldType(path string) (reflect.Type, error) {
	t := reflect.TypeOf(Config{})
	for _, key := range strings.Split(path, ".") {
		switch t.Kind() {
		case reflect.Map:
			t = t.Elem()
		case reflect.Struct:
			f, ok := fieldByTag(t, key)
			if !ok {
				return nil, fmt.Errorf("key not found: %s", path)
			}
			t = f.Type
		default:
			return nil, fmt.Errorf("cannot traverse into %s at %s", t.Kind(), key)
		}
	}
	if k := t.Kind(); k == reflect.Struct || k == reflect.Map {
		return nil, fmt.Errorf("path must name a field, %s is a section", path)
	}
	return t, nil
}

func fieldByTag(t reflect.Type, name string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tag == name {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func parseAs(t reflect.Type, raw string) (any, error) {
	switch t.Kind() {
	case reflect.String:
		return raw, nil
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected true or false, got %q", raw)
		}
		return b, nil
	case reflect.Int, reflect.Int64, reflect.Int32:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("expected an integer, got %q", raw)
		}
		return n, nil
	case reflect.Slice:
		items := []string{}
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		return items, nil
	}
	return nil, fmt.Errorf("unsupported field type %s", t)
}

// Sanitize returns a copy of the config with secrets masked.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	out.Providers = maps.Clone(cfg.Providers)
	out.Generation.Failover = append([]string(nil), cfg.Generation.Failover...)

	for name, pc := range out.Providers {
		pc.APIKey = maskString(pc.APIKey)
		out.Providers[name] = pc
	}
	out.Auth.JWTSecret = maskString(out.Auth.JWTSecret)
	out.Auth.PatientJWTSecret = maskString(out.Auth.PatientJWTSecret)
	if out.Workflow.CallbackSecret != "" {
		out.Workflow.CallbackSecret = "***"
	}
	if out.Database.Driver == "postgres" {
		out.Database.DSN = maskDSN(out.Database.DSN)
	}
	return &out
}

// maskDSN hides the password of a URL-style DSN.
func maskDSN(dsn string) string {
	scheme := strings.Index(dsn, "://")
	at := strings.LastIndex(dsn, "@")
	if scheme < 0 || at < scheme {
		return dsn
	}
	user, _, hasPassword := strings.Cut(dsn[scheme+3:at], ":")
	if !hasPassword {
		return dsn
	}
	return dsn[:scheme+3] + user + ":***" + dsn[at:]
}

// maskString keeps the first and last four characters of long secrets.
// Empty input stays empty.
func maskString(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "****" + s[len(s)-4:]
	}
}

// ListPaths returns every leaf path with its current value.
func ListPaths(cfg *Config) map[string]any {
	m, err := toTree(cfg)
	if err != nil {
		return nil
	}
	out := make(map[string]any)
	var walk func(prefix string, node tree)
	walk = func(prefix string, node tree) {
		for k, v := range node {
			if prefix != "" {
				k = prefix + "." + k
			}
			if child, ok := v.(tree); ok && len(child) > 0 {
				walk(k, child)
				continue
			}
			out[k] = v
		}
	}
	walk("", m)
	return out
}
