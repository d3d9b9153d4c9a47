package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/msgsight/cfgd/pkg/store"
)

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

var validBackends = map[string]bool{
	string(store.BackendFile):   true,
	string(store.BackendSQLite): true,
	string(store.BackendEtcd):   true,
	string(store.BackendMemory): true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

// Validate checks the configuration and reports every invalid field.
func (c *ServerConfig) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.Version) == "" {
		add("version", "must not be empty")
	}

	if c.Admin.Port < 0 || c.Admin.Port > 65535 {
		add("admin.port", "must be between 0 and 65535, got %d", c.Admin.Port)
	}
	if c.Admin.ReadTimeout < 0 {
		add("admin.readTimeout", "must not be negative")
	}
	if c.Admin.WriteTimeout < 0 {
		add("admin.writeTimeout", "must not be negative")
	}

	backend := strings.ToLower(c.Storage.Backend)
	switch {
	case !validBackends[backend]:
		add("storage.backend", "unknown backend %q (want file, sqlite, etcd or memory)", c.Storage.Backend)
	case backend == string(store.BackendEtcd) && len(c.Storage.Etcd.Endpoints) == 0:
		add("storage.etcd.endpoints", "required for the etcd backend")
	case backend == string(store.BackendEtcd) && c.Storage.Etcd.Prefix != "" && !strings.HasPrefix(c.Storage.Etcd.Prefix, "/"):
		add("storage.etcd.prefix", "must start with /")
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", "unknown level %q", c.Log.Level)
	}
	if !validLogFormats[strings.ToLower(c.Log.Format)] {
		add("log.format", "unknown format %q", c.Log.Format)
	}

	if c.Notify.Buffer < 0 {
		add("notify.buffer", "must not be negative")
	}
	if broker := c.Notify.MQTT.Broker; broker != "" {
		if u, err := url.Parse(broker); err != nil || u.Scheme == "" || u.Host == "" {
			add("notify.mqtt.broker", "invalid broker URL %q", broker)
		}
	}
	if q := c.Notify.MQTT.QoS; q < 0 || q > 2 {
		add("notify.mqtt.qos", "must be 0, 1 or 2")
	}

	for i, p := range c.Import.Paths {
		if strings.TrimSpace(p) == "" {
			add(fmt.Sprintf("import.paths[%d]", i), "must not be empty")
		}
	}

	return errors.Join(errs...)
}
