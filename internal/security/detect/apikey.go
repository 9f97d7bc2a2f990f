// ABOUTME: API key detection for generic key assignments and well-known service token formats.
// ABOUTME: Documentation placeholders and low-variety strings are skipped.

package detect

import (
	"regexp"
	"strings"
)

type keyPattern struct {
	service string
	re      *regexp.Regexp
}

// defaultAPIKeyPatterns are checked in order; the first service to claim a
// key wins for deduplication.
var defaultAPIKeyPatterns = []keyPattern{
	{"generic", regexp.MustCompile(`(?i)(?:api[_-]?key|apikey|api[_-]?token|access[_-]?token)\s*[:=]\s*['"]?([a-zA-Z0-9_\-]{10,})['"]?`)},
	{"aws_access_key", regexp.MustCompile(`(?i)(?:aws[_-]?access[_-]?key[_-]?id|AKIA)[^\s]*[:=]?\s*([A-Z0-9]{20})`)},
	{"aws_secret_key", regexp.MustCompile(`(?i)aws[_-]?secret[_-]?access[_-]?key\s*[:=]\s*['"]?([a-zA-Z0-9/+=]{40})['"]?`)},
	{"generic_sk", regexp.MustCompile(`\bsk[-_][a-zA-Z0-9_\-]{8,}\b`)},
	{"github_pat", regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}`)},
	{"github_oauth", regexp.MustCompile(`gho_[a-zA-Z0-9]{36}`)},
	{"github_app", regexp.MustCompile(`github_pat_[a-zA-Z0-9]{22}_[a-zA-Z0-9]{59}`)},
	{"slack_token", regexp.MustCompile(`xox[baprs]-[0-9]{10,13}-[0-9]{10,13}-[a-zA-Z0-9]{24,34}`)},
	{"stripe_live", regexp.MustCompile(`sk_live_[a-zA-Z0-9]{24,}`)},
	{"stripe_test", regexp.MustCompile(`sk_test_[a-zA-Z0-9]{24,}`)},
	{"sendgrid", regexp.MustCompile(`SG\.[a-zA-Z0-9_\-]{22}\.[a-zA-Z0-9_\-]{43}`)},
	{"twilio", regexp.MustCompile(`SK[a-f0-9]{32}`)},
	{"google_api", regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`)},
	{"bearer", regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9_\-\.]{20,})`)},
}

var placeholderKeys = map[string]bool{
	"xxxxxxxxxxxxxxxxxxxx": true,
	"your-api-key-here":    true,
	"YOUR_API_KEY":         true,
}

// APIKeyValidator finds API keys and service tokens.
type APIKeyValidator struct {
	patterns []keyPattern
}

// NewAPIKeyValidator creates a validator for generic keys and known service tokens.
func NewAPIKeyValidator() *APIKeyValidator {
	return &APIKeyValidator{patterns: defaultAPIKeyPatterns}
}

func (v *APIKeyValidator) Name() string { return "api_key" }

func (v *APIKeyValidator) FindMatches(text string) []Match {
	var matches []Match
	seen := make(map[string]bool)

	for _, p := range v.patterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			key := text[loc[0]:loc[1]]
			// Placeholder checks look at the captured value, not the "api_key=" prefix.
			secret := key
			if len(loc) >= 4 && loc[2] >= 0 {
				secret = text[loc[2]:loc[3]]
			}
			if seen[key] || isPlaceholderKey(secret) {
				continue
			}
			seen[key] = true
			matches = append(matches, Match{Text: key, Start: loc[0], End: loc[1]})
		}
	}
	return matches
}

func isPlaceholderKey(key string) bool {
	lower := strings.ToLower(key)
	if strings.Contains(lower, "example") || strings.Contains(lower, "sample") {
		return true
	}
	if placeholderKeys[key] {
		return true
	}

	distinct := make(map[rune]bool)
	for _, r := range key {
		if r == '-' || r == '_' {
			continue
		}
		distinct[r] = true
	}
	return len(distinct) <= 2
}
