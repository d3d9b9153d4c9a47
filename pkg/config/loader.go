package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound = errors.New("configuration file not found")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "CFGD_CONFIG"

// DiscoveryOrder defines the file names tried in the current directory.
var DiscoveryOrder = []string{
	"cfgd.yaml",
	"cfgd.yml",
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads the configuration file at path, or discovers one when path is
// empty, applies CFGD_* overrides and validates the result. Without a file
// the defaults are used.
func Load(path string) (*ServerConfig, error) {
	if path == "" {
		discovered, err := Discover()
		if err != nil {
			return nil, err
		}
		path = discovered
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults after expanding environment
// references. Unknown keys are rejected.
func Parse(data []byte) (*ServerConfig, error) {
	cfg := Default()
	expanded := ExpandEnvVars(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return cfg, nil
}

// Discover finds a config file via CFGD_CONFIG or in the current directory.
// It returns "" when there is none.
func Discover() (string, error) {
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("%s points to non-existent file: %s", EnvConfig, envPath)
		}
		return envPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	for _, name := range DiscoveryOrder {
		path := filepath.Join(cwd, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// ExpandEnvVars expands environment variables in the input string.
// Supports ${VAR_NAME} and ${VAR_NAME:-default} syntax.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		if val := os.Getenv(submatch[1]); val != "" {
			return val
		}
		if len(submatch) >= 3 {
			return submatch[2]
		}
		return ""
	})
}

// ApplyEnv overrides fields from CFGD_* variables.
func (c *ServerConfig) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, v))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, v))
				return
			}
			*dst = d
		}
	}

	str("CFGD_VERSION", &c.Version)
	str("CFGD_ADMIN_HOST", &c.Admin.Host)
	num("CFGD_ADMIN_PORT", &c.Admin.Port)
	dur("CFGD_ADMIN_READ_TIMEOUT", &c.Admin.ReadTimeout)
	str("CFGD_STORAGE_BACKEND", &c.Storage.Backend)
	str("CFGD_DATA_DIR", &c.Storage.DataDir)
	str("CFGD_SQLITE_PATH", &c.Storage.SQLitePath)
	list("CFGD_ETCD_ENDPOINTS", &c.Storage.Etcd.Endpoints)
	str("CFGD_ETCD_PREFIX", &c.Storage.Etcd.Prefix)
	str("CFGD_LOG_LEVEL", &c.Log.Level)
	str("CFGD_LOG_FORMAT", &c.Log.Format)
	str("CFGD_LOG_AUDIT_FILE", &c.Log.AuditFile)
	str("CFGD_MQTT_BROKER", &c.Notify.MQTT.Broker)
	str("CFGD_MQTT_TOPIC_PREFIX", &c.Notify.MQTT.TopicPrefix)
	list("CFGD_IMPORT_PATHS", &c.Import.Paths)

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
