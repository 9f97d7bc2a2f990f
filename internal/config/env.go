// ABOUTME: ${VAR} substitution against the process environment
// ABOUTME: Lenient form keeps unknown references; strict form reports them

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ErrUnresolvedEnv indicates a ${VAR} reference named an unset variable.
var ErrUnresolvedEnv = errors.New("unresolved environment variable")

// envVarPattern matches ${VAR_NAME}
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnv replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. References to unset variables are left unchanged.
func ExpandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

// ExpandEnvStrict is ExpandEnv but fails if any referenced variable is unset.
// A variable set to the empty string counts as resolved.
func ExpandEnvStrict(s string) (string, error) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		value, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnresolvedEnv, strings.Join(missing, ", "))
	}
	return out, nil
}
