package cliconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config file locations.
const (
	// LocalConfigFileName is looked up in the working directory.
	LocalConfigFileName = ".cfgd.yaml"
	// GlobalConfigDir is the directory under the user config dir.
	GlobalConfigDir = "cfgd"
	// GlobalConfigFileName is the file inside GlobalConfigDir.
	GlobalConfigFileName = "cli.yaml"
)

// FindLocalConfig returns the local config path, or "" when there is none.
func FindLocalConfig() string {
	if _, err := os.Stat(LocalConfigFileName); err != nil {
		return ""
	}
	abs, err := filepath.Abs(LocalConfigFileName)
	if err != nil {
		return LocalConfigFileName
	}
	return abs
}

// FindGlobalConfig returns the global config path, or "" when there is none.
func FindGlobalConfig() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, GlobalConfigDir, GlobalConfigFileName)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// ConfigError is a malformed config file. Line is 0 when the decoder did
// not report a position.
type ConfigError struct {
	Path    string
	Line    int
	Message string
}

func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Path, e.Line, e.Message)
	}
	return e.Path + ": " + e.Message
}

var yamlLine = regexp.MustCompile(`line (\d+): (.*)`)

// LoadConfigFile reads one YAML config file. Unknown keys are errors.
func LoadConfigFile(path string) (*CLIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg CLIConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, newConfigError(path, err)
	}
	return &cfg, nil
}

func newConfigError(path string, err error) *ConfigError {
	msg := err.Error()
	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		msg = te.Errors[0]
	}
	ce := &ConfigError{Path: path, Message: msg}
	if m := yamlLine.FindStringSubmatch(msg); m != nil {
		ce.Line, _ = strconv.Atoi(m[1])
		ce.Message = m[2]
	}
	return ce
}

// LoadAll merges defaults, the global file, the local file and the
// environment, in that order. Flags are applied by the caller.
func LoadAll() (*CLIConfig, error) {
	cfg := NewDefault()
	for _, f := range []struct{ path, source string }{
		{FindGlobalConfig(), SourceGlobal},
		{FindLocalConfig(), SourceLocal},
	} {
		if f.path == "" {
			continue
		}
		fileCfg, err := LoadConfigFile(f.path)
		if err != nil {
			return nil, err
		}
		MergeConfig(cfg, fileCfg, f.source)
	}
	if err := LoadEnvConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ApplyFlag overrides a setting from the command line. Empty values are
// ignored so unset flags keep the lower layers.
func (c *CLIConfig) ApplyFlag(key, value string) error {
	if value == "" {
		return nil
	}
	return c.set(key, value, SourceFlag)
}

func (c *CLIConfig) set(key, value, source string) error {
	switch key {
	case KeyAdminURL:
		c.AdminURL = value
	case KeyOutput:
		c.Output = value
	case KeyTimeout:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		c.Timeout = Duration(d)
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	if c.Sources == nil {
		c.Sources = make(map[string]string)
	}
	c.Sources[key] = source
	return nil
}
