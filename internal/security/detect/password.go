// ABOUTME: Exposed password detection from key/value, env, JSON and URL credential shapes.
// ABOUTME: Candidates must look like real passwords by zxcvbn score, entropy, or character mix.

package detect

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/nbutton23/zxcvbn-go"
)

var passwordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:password|passwd|pwd|pass|secret)\s*[:=]\s*['"]?([^\s'"]+)['"]?`),
	regexp.MustCompile(`(?i)(?:PASSWORD|PASSWD|PWD|PASS|SECRET)=([^\s\n]+)`),
	regexp.MustCompile(`(?i)['"]?(?:password|passwd|pwd|pass|secret)['"]?\s*:\s*['"]([^'"]+)['"]`),
	regexp.MustCompile(`(?i)(?:mysql|postgres|postgresql|mongodb|redis)://[^:]+:([^@]+)@`),
	regexp.MustCompile(`(?i)https?://[^:]+:([^@]+)@`),
}

var placeholderPasswords = map[string]bool{
	"xxx": true, "***": true, "...": true, "null": true, "none": true,
	"undefined": true, "empty": true, "test": true, "demo": true,
	"example": true, "sample": true, "placeholder": true, "changeme": true,
	"password": true, "pass": true, "pwd": true, "secret": true,
	"123": true, "1234": true, "12345": true, "123456": true,
	"admin": true, "root": true,
}

var lettersOnly = regexp.MustCompile(`^[a-zA-Z]+$`)

const passwordSpecials = "!@#$%^&*()-=+[]{};'\",.<>?/\\|"

// PasswordValidator finds passwords exposed in text.
type PasswordValidator struct {
	MinLength  int
	MaxLength  int
	MinEntropy float64
	MinScore   int
}

// NewPasswordValidator creates a password validator with the usual thresholds:
// 8 to 64 characters, 40 bits of entropy, zxcvbn score 2.
func NewPasswordValidator() *PasswordValidator {
	return &PasswordValidator{MinLength: 8, MaxLength: 64, MinEntropy: 40, MinScore: 2}
}

func (v *PasswordValidator) Name() string { return "password" }

func (v *PasswordValidator) FindMatches(text string) []Match {
	var matches []Match
	seen := make(map[string]bool)

	for _, pattern := range passwordPatterns {
		for _, loc := range pattern.FindAllStringSubmatchIndex(text, -1) {
			password := text[loc[0]:loc[1]]
			if len(loc) >= 4 && loc[2] >= 0 {
				password = text[loc[2]:loc[3]]
			}
			if strings.HasPrefix(password, "$") || strings.HasPrefix(password, "%") {
				continue
			}
			if !v.looksReal(password) || seen[password] {
				continue
			}
			seen[password] = true
			matches = append(matches, Match{Text: text[loc[0]:loc[1]], Start: loc[0], End: loc[1]})
		}
	}
	return matches
}

func (v *PasswordValidator) looksReal(password string) bool {
	if len(password) < v.MinLength || len(password) > v.MaxLength {
		return false
	}
	if placeholderPasswords[strings.ToLower(password)] {
		return false
	}
	if lettersOnly.MatchString(password) {
		return false
	}
	if zxcvbn.PasswordStrength(password, nil).Score >= v.MinScore {
		return true
	}
	if passwordEntropy(password) >= v.MinEntropy {
		return true
	}
	return charClasses(password) >= 2
}

// passwordEntropy is length times log2 of the character pool the password draws from.
func passwordEntropy(password string) float64 {
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}

	charset := 0
	if lower {
		charset += 26
	}
	if upper {
		charset += 26
	}
	if digit {
		charset += 10
	}
	if special {
		charset += 32
	}
	if charset == 0 {
		return 0
	}
	return float64(len(password)) * math.Log2(float64(charset))
}

func charClasses(password string) int {
	classes := 0
	if strings.IndexFunc(password, unicode.IsLower) >= 0 {
		classes++
	}
	if strings.IndexFunc(password, unicode.IsUpper) >= 0 {
		classes++
	}
	if strings.IndexFunc(password, unicode.IsDigit) >= 0 {
		classes++
	}
	if strings.ContainsAny(password, passwordSpecials) {
		classes++
	}
	return classes
}
