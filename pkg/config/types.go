package config

import (
	"path/filepath"
	"time"

	"github.com/tiendc/go-deepcopy"

	"github.com/msgsight/cfgd/pkg/store"
)

// Default values.
const (
	DefaultAdminPort       = 9089
	DefaultAdminHost       = "0.0.0.0"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultVersion         = "v1"
	DefaultEventBuffer     = 64
)

// ServerConfig is the complete server configuration.
type ServerConfig struct {
	// Version is reported as "Version" in every configuration document.
	Version string        `yaml:"version"`
	Admin   AdminConfig   `yaml:"admin"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Notify  NotifyConfig  `yaml:"notify"`
	Import  ImportConfig  `yaml:"import"`
}

// AdminConfig configures the REST management listener.
type AdminConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StorageConfig selects and configures the durable backend.
type StorageConfig struct {
	// Backend is one of file, sqlite, etcd or memory.
	Backend    string     `yaml:"backend"`
	DataDir    string     `yaml:"dataDir"`
	SQLitePath string     `yaml:"sqlitePath"`
	ReadOnly   bool       `yaml:"readOnly"`
	Etcd       EtcdConfig `yaml:"etcd"`
}

// EtcdConfig configures the etcd backend.
type EtcdConfig struct {
	Endpoints   []string      `yaml:"endpoints"`
	Prefix      string        `yaml:"prefix"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AuditFile string `yaml:"auditFile"`
	// AddSource adds the source file and line to each record.
	AddSource bool   `yaml:"addSource"`
}

// NotifyConfig configures change notification.
type NotifyConfig struct {
	// Buffer is the per-subscriber event buffer.
	Buffer int        `yaml:"buffer"`
	MQTT   MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig configures the optional MQTT change publisher. An empty Broker
// disables it.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"clientId"`
	TopicPrefix string `yaml:"topicPrefix"`
	QoS         int    `yaml:"qos"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// ImportConfig lists documents imported on first start.
type ImportConfig struct {
	// Paths are file paths or doublestar globs.
	Paths []string `yaml:"paths"`
}

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Version: DefaultVersion,
		Admin: AdminConfig{
			Host:            DefaultAdminHost,
			Port:            DefaultAdminPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Storage: StorageConfig{
			Backend: string(store.BackendFile),
			DataDir: store.DefaultDataDir(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Notify: NotifyConfig{
			Buffer: DefaultEventBuffer,
		},
	}
}

// Clone returns a deep copy of the configuration.
func (c *ServerConfig) Clone() *ServerConfig {
	if c == nil {
		return nil
	}
	clone := &ServerConfig{}
	if err := deepcopy.Copy(clone, c); err != nil {
		// Plain data only; a copy failure is a programming error.
		panic("config: clone: " + err.Error())
	}
	return clone
}

// SQLiteFile returns the SQLite database path, defaulting to cfgd.db in
// the data directory.
func (s StorageConfig) SQLiteFile() string {
	if s.SQLitePath != "" {
		return s.SQLitePath
	}
	dir := s.DataDir
	if dir == "" {
		dir = store.DefaultDataDir()
	}
	return filepath.Join(dir, "cfgd.db")
}
