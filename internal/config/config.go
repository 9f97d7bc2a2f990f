// ABOUTME: Configuration loading and parsing for mcpware
// ABOUTME: Reads JSON/YAML or TOML files, applies security defaults, and validates backend classification

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrUnclassifiedBackend indicates a configured backend has no security level.
var ErrUnclassifiedBackend = errors.New("backend not classified in security policy")

// DefaultBackendTimeout is used when a backend does not set its own timeout.
const DefaultBackendTimeout = 30 * time.Second

// DefaultHealthInterval is how often the admin endpoint re-probes backends.
const DefaultHealthInterval = 30 * time.Second

// Config represents the complete mcpware configuration
type Config struct {
	Backends       BackendList          `yaml:"backends" toml:"backends"`
	SecurityPolicy SecurityPolicyConfig `yaml:"security_policy" toml:"security_policy"`
	Logging        LoggingConfig        `yaml:"logging" toml:"logging"`
	Audit          AuditConfig          `yaml:"audit" toml:"audit"`
	Admin          AdminConfig          `yaml:"admin" toml:"admin"`
	WatchConfig    bool                 `yaml:"watch_config" toml:"watch_config"`
}

// SecurityLevel classifies how trusted a backend's data is.
type SecurityLevel string

const (
	LevelPublic    SecurityLevel = "public"
	LevelInternal  SecurityLevel = "internal"
	LevelSensitive SecurityLevel = "sensitive"
)

// Valid reports whether the level is one of the known classifications.
func (l SecurityLevel) Valid() bool {
	switch l {
	case LevelPublic, LevelInternal, LevelSensitive:
		return true
	}
	return false
}

// SecurityPolicyConfig holds the cross-backend security policy.
// Optional switches default to true except AllowClientSessionIDs; see
// DefaultSecurityPolicy.
type SecurityPolicyConfig struct {
	BackendSecurityLevels        map[string]SecurityLevel `yaml:"backend_security_levels" toml:"backend_security_levels"`
	PreventSensitiveToPublic     bool                     `yaml:"prevent_sensitive_to_public" toml:"prevent_sensitive_to_public"`
	PreventSensitiveDataLeak     bool                     `yaml:"prevent_sensitive_data_leak" toml:"prevent_sensitive_data_leak"`
	SQLInjectionProtection       bool                     `yaml:"sql_injection_protection" toml:"sql_injection_protection"`
	LogAllCrossBackendAccess     bool                     `yaml:"log_all_cross_backend_access" toml:"log_all_cross_backend_access"`
	BlockAfterSuspiciousActivity bool                     `yaml:"block_after_suspicious_activity" toml:"block_after_suspicious_activity"`
	SessionTimeoutMinutes        int                      `yaml:"session_timeout_minutes" toml:"session_timeout_minutes"`
	MaxSessions                  int                      `yaml:"max_sessions" toml:"max_sessions"`
	AllowClientSessionIDs        bool                     `yaml:"allow_client_session_ids" toml:"allow_client_session_ids"`
}

// DefaultSecurityPolicy returns the policy used for any field the file omits.
func DefaultSecurityPolicy() SecurityPolicyConfig {
	return SecurityPolicyConfig{
		PreventSensitiveToPublic:     true,
		PreventSensitiveDataLeak:     true,
		SQLInjectionProtection:       true,
		LogAllCrossBackendAccess:     true,
		BlockAfterSuspiciousActivity: true,
		SessionTimeoutMinutes:        30,
		MaxSessions:                  10000,
	}
}

// SessionTimeout returns the session window as a duration.
func (p SecurityPolicyConfig) SessionTimeout() time.Duration {
	return time.Duration(p.SessionTimeoutMinutes) * time.Minute
}

// LevelOf returns the security level of a backend and whether it is classified.
func (p SecurityPolicyConfig) LevelOf(backend string) (SecurityLevel, bool) {
	level, ok := p.BackendSecurityLevels[backend]
	return level, ok
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// AuditConfig enables the SQLite security decision log when Path is set.
type AuditConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AdminConfig holds the optional gRPC health endpoint configuration
type AdminConfig struct {
	GRPCAddr       string        `yaml:"grpc_addr" toml:"grpc_addr"`
	HealthInterval time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	HealthIntervalRaw string `yaml:"health_interval" toml:"health_interval"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML; everything else as YAML, which also
// accepts plain JSON. Environment variables are not expanded here: backend
// commands and env maps are expanded when each backend process starts.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".toml"))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes raw configuration bytes, applies defaults and validates the result.
func Parse(data []byte, isTOML bool) (*Config, error) {
	cfg := Config{SecurityPolicy: DefaultSecurityPolicy()}

	if isTOML {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend is required")
	}

	seen := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backends[%d].name is required", i)
		}
		if strings.ContainsAny(b.Name, ": \t\n") {
			return fmt.Errorf("backend %q: name must not contain ':' or whitespace", b.Name)
		}
		if seen[b.Name] {
			return fmt.Errorf("backend %q is defined more than once", b.Name)
		}
		seen[b.Name] = true

		if len(b.Command) == 0 || b.Command[0] == "" {
			return fmt.Errorf("backend %q: command is required", b.Name)
		}
		if b.TimeoutSeconds < 0 {
			return fmt.Errorf("backend %q: timeout must not be negative", b.Name)
		}
	}

	return c.SecurityPolicy.validate(c.Backends.Names())
}

// validate checks the policy against the configured backend names.
func (p SecurityPolicyConfig) validate(backends []string) error {
	if p.BackendSecurityLevels == nil {
		return fmt.Errorf("security_policy.backend_security_levels is required")
	}

	var unclassified []string
	for _, name := range backends {
		if _, ok := p.BackendSecurityLevels[name]; !ok {
			unclassified = append(unclassified, name)
		}
	}
	if len(unclassified) > 0 {
		return fmt.Errorf("%w: %s. Please add them to 'backend_security_levels' with value: public, internal, or sensitive",
			ErrUnclassifiedBackend, strings.Join(unclassified, ", "))
	}

	for name, level := range p.BackendSecurityLevels {
		if !level.Valid() {
			return fmt.Errorf("security_policy.backend_security_levels.%s: invalid level %q (want public, internal, or sensitive)", name, level)
		}
	}

	if p.SessionTimeoutMinutes <= 0 {
		return fmt.Errorf("security_policy.session_timeout_minutes must be positive")
	}
	if p.MaxSessions < 0 {
		return fmt.Errorf("security_policy.max_sessions must not be negative")
	}

	return nil
}

// Backend returns the backend configuration with the given name.
func (c *Config) Backend(name string) (BackendConfig, bool) {
	for _, b := range c.Backends {
		if b.Name == name {
			return b, true
		}
	}
	return BackendConfig{}, false
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	cfg.Admin.HealthInterval = DefaultHealthInterval
	if cfg.Admin.HealthIntervalRaw != "" {
		d, err := time.ParseDuration(cfg.Admin.HealthIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing health_interval %q: %w", cfg.Admin.HealthIntervalRaw, err)
		}
		if d <= 0 {
			return fmt.Errorf("health_interval must be positive, got %s", d)
		}
		cfg.Admin.HealthInterval = d
	}
	return nil
}
