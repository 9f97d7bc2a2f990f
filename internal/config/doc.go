// Package config handles configuration loading for mcpware.
//
// # Overview
//
// Configuration is loaded from a JSON, YAML or TOML file. The format is chosen
// by extension: .toml files go through BurntSushi/toml, everything else through
// yaml.v3 (which reads plain JSON unchanged). Load applies defaults and
// validates the result; a config that fails validation must stop the process.
//
// # Configuration File
//
// Lookup order (resolved by the CLI):
//
//  1. --config flag
//  2. MCPWARE_CONFIG environment variable
//  3. ./config.json
//
// # Backends
//
// Backends may be written as a list:
//
//	{"backends": [
//	  {"name": "github", "command": "npx", "args": ["-y", "@mcp/github"],
//	   "description": "GitHub API", "timeout": 30,
//	   "env": {"GITHUB_TOKEN": "${GITHUB_TOKEN}"}}
//	]}
//
// or as a map keyed by name. The command may be a string or a list; a list
// contributes its tail to argv ahead of args. Timeout is in seconds and
// defaults to 30. Backend names must be unique and may not contain ':'.
//
// # Environment Variable Expansion
//
// ${VAR_NAME} references are expanded when a backend process starts, not at
// load time. In command and args an unset variable is left as written. In the
// env map an unset variable is an error (ErrUnresolvedEnv) that fails that
// backend's startup.
//
// # Security Policy
//
//	security_policy:
//	  backend_security_levels:      # required, every backend must appear
//	    github: public
//	    database: sensitive
//	  prevent_sensitive_to_public: true
//	  prevent_sensitive_data_leak: true
//	  sql_injection_protection: true
//	  log_all_cross_backend_access: true
//	  block_after_suspicious_activity: true
//	  session_timeout_minutes: 30
//	  max_sessions: 10000           # 0 disables the LRU bound
//	  allow_client_session_ids: false
//
// Every switch defaults to true when omitted, except allow_client_session_ids.
// With it off, a tools/call _session_id or _request_id is ignored and the
// connection's own session is used, so a client cannot shed a tainted
// session by naming a new one.
//
// # Other Sections
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	audit:
//	  path: "/var/lib/mcpware/audit.db"   # enables the decision log
//
//	admin:
//	  grpc_addr: "127.0.0.1:50070"        # enables gRPC health
//	  health_interval: "30s"
//
//	watch_config: true                    # hot-reload security_policy
//
// # Usage
//
//	cfg, err := config.Load("/etc/mcpware/config.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
