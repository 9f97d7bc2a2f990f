// ABOUTME: Backend server definitions and their flexible file encodings
// ABOUTME: Accepts backends as a list or a name-keyed map, and commands as a string or list

package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// BackendConfig describes one backend MCP server process. It is immutable after load.
type BackendConfig struct {
	Name           string            `yaml:"name" toml:"name"`
	Command        CommandLine       `yaml:"command" toml:"command"`
	Args           []string          `yaml:"args" toml:"args"`
	Description    string            `yaml:"description" toml:"description"`
	TimeoutSeconds int               `yaml:"timeout" toml:"timeout"`
	Env            map[string]string `yaml:"env" toml:"env"`
}

// Timeout returns the per-request timeout, falling back to DefaultBackendTimeout.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return DefaultBackendTimeout
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// ResolveCommand returns the executable and its arguments with ${VAR}
// references expanded. Unresolved references are left as written.
func (b BackendConfig) ResolveCommand() (string, []string) {
	argv := make([]string, 0, len(b.Command)+len(b.Args))
	for _, part := range b.Command {
		argv = append(argv, ExpandEnv(part))
	}
	for _, arg := range b.Args {
		argv = append(argv, ExpandEnv(arg))
	}
	if len(argv) == 0 {
		return "", nil
	}
	return argv[0], argv[1:]
}

// ResolveEnv layers the backend's env overrides on top of base. Every ${VAR}
// in an override must resolve, otherwise ErrUnresolvedEnv is returned.
func (b BackendConfig) ResolveEnv(base []string) ([]string, error) {
	env := make([]string, 0, len(base)+len(b.Env))
	env = append(env, base...)
	for key, value := range b.Env {
		expanded, err := ExpandEnvStrict(value)
		if err != nil {
			return nil, fmt.Errorf("env %s: %w", key, err)
		}
		env = append(env, key+"="+expanded)
	}
	return env, nil
}

// CommandLine is an executable with optional leading arguments. In a config
// file it may be written as a single string or as a list of strings.
type CommandLine []string

// UnmarshalYAML accepts a scalar or a sequence.
func (c *CommandLine) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*c = CommandLine{s}
		return nil
	case yaml.SequenceNode:
		var parts []string
		if err := node.Decode(&parts); err != nil {
			return err
		}
		*c = CommandLine(parts)
		return nil
	default:
		return fmt.Errorf("line %d: command must be a string or a list of strings", node.Line)
	}
}

// BackendList is the ordered set of configured backends. In a config file it
// may be a list of objects carrying "name", or a map keyed by backend name.
type BackendList []BackendConfig

// Names returns backend names in configuration order.
func (l BackendList) Names() []string {
	names := make([]string, len(l))
	for i, b := range l {
		names[i] = b.Name
	}
	return names
}

// UnmarshalYAML accepts a sequence of backends or a mapping of name to backend.
func (l *BackendList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []BackendConfig
		if err := node.Decode(&list); err != nil {
			return err
		}
		*l = list
		return nil
	case yaml.MappingNode:
		list := make([]BackendConfig, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			var b BackendConfig
			if err := value.Decode(&b); err != nil {
				return fmt.Errorf("backend %q: %w", key.Value, err)
			}
			if b.Name == "" {
				b.Name = key.Value
			} else if b.Name != key.Value {
				return fmt.Errorf("backend %q: name field %q does not match its key", key.Value, b.Name)
			}
			list = append(list, b)
		}
		*l = list
		return nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*l = nil
			return nil
		}
	}
	return fmt.Errorf("line %d: backends must be a list or a map", node.Line)
}

// UnmarshalTOML accepts [[backends]] arrays and [backends.<name>] tables by
// re-encoding the decoded value through the YAML path, so both formats share
// one set of rules.
func (l *BackendList) UnmarshalTOML(data any) error {
	raw, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("re-encoding backends: %w", err)
	}
	return yaml.Unmarshal(raw, l)
}
