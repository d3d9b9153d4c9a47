// Package config provides the cfgd server configuration.
//
// Configuration is read from a YAML file, then overridden by CFGD_*
// environment variables, then by command-line flags:
//
//	version: v1
//	admin:
//	  port: 9089
//	  readTimeout: 30s
//	storage:
//	  backend: sqlite
//	  sqlitePath: ${CFGD_HOME:-/var/lib/cfgd}/cfgd.db
//	log:
//	  level: info
//	  format: json
//	notify:
//	  mqtt:
//	    broker: tcp://localhost:1883
//	import:
//	  paths: ["config/*.yaml"]
//
// ${VAR} and ${VAR:-default} references are expanded before parsing.
// The file is discovered from --config, then CFGD_CONFIG, then cfgd.yaml or
// cfgd.yml in the current directory; without one the defaults are used.
package config
