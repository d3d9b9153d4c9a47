package cliconfig

import (
	"fmt"
	"os"
)

// Environment variables, applied over the config files.
const (
	EnvAdminURL = "CFGD_ADMIN_URL"
	EnvTimeout  = "CFGD_TIMEOUT"
	EnvOutput   = "CFGD_OUTPUT"
)

var envKeys = []struct{ env, key string }{
	{EnvAdminURL, KeyAdminURL},
	{EnvTimeout, KeyTimeout},
	{EnvOutput, KeyOutput},
}

// LoadEnvConfig applies the CFGD_* variables that are set and non-empty.
func LoadEnvConfig(cfg *CLIConfig) error {
	for _, e := range envKeys {
		v := os.Getenv(e.env)
		if v == "" {
			continue
		}
		if err := cfg.set(e.key, v, SourceEnv); err != nil {
			return fmt.Errorf("%s: %w", e.env, err)
		}
	}
	return nil
}
