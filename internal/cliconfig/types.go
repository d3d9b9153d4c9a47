package cliconfig

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config sources, lowest precedence first.
const (
	SourceDefault = "default"
	SourceGlobal  = "global"
	SourceLocal   = "local"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// Setting keys, as written in config files and passed to ApplyFlag.
const (
	KeyAdminURL = "adminUrl"
	KeyTimeout  = "timeout"
	KeyOutput   = "output"
)

// Defaults.
const (
	DefaultAdminURL = "http://localhost:9089"
	DefaultTimeout  = 30 * time.Second
	DefaultOutput   = "json"
)

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: timeout must be a duration like 30s", node.Line)
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// CLIConfig holds the settings shared by client commands.
type CLIConfig struct {
	// AdminURL is the base URL of the cfgd REST API.
	AdminURL string `yaml:"adminUrl,omitempty"`
	// Timeout bounds each request.
	Timeout Duration `yaml:"timeout,omitempty"`
	// Output is json or yaml.
	Output string `yaml:"output,omitempty"`

	// Sources records where each value came from, keyed by setting key.
	Sources map[string]string `yaml:"-"`
}

// NewDefault returns the default client configuration.
func NewDefault() *CLIConfig {
	return &CLIConfig{
		AdminURL: DefaultAdminURL,
		Timeout:  Duration(DefaultTimeout),
		Output:   DefaultOutput,
		Sources: map[string]string{
			KeyAdminURL: SourceDefault,
			KeyTimeout:  SourceDefault,
			KeyOutput:   SourceDefault,
		},
	}
}

// MergeConfig copies the values set in src over dst.
func MergeConfig(dst, src *CLIConfig, source string) {
	if src.AdminURL != "" {
		dst.AdminURL = src.AdminURL
		dst.Sources[KeyAdminURL] = source
	}
	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
		dst.Sources[KeyTimeout] = source
	}
	if src.Output != "" {
		dst.Output = src.Output
		dst.Sources[KeyOutput] = source
	}
}

// Validate checks the merged configuration.
func (c *CLIConfig) Validate() error {
	if c.AdminURL == "" {
		return fmt.Errorf("%s must not be empty", KeyAdminURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%s must not be negative", KeyTimeout)
	}
	if c.Output != "json" && c.Output != "yaml" {
		return fmt.Errorf("%s must be json or yaml, got %q", KeyOutput, c.Output)
	}
	return nil
}
