// ABOUTME: Phone number detection backed by libphonenumber metadata.
// ABOUTME: Only international numbers with a leading + are considered, since no region is assumed.

package detect

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var phoneCandidate = regexp.MustCompile(`\+[0-9][0-9 ().\-]{5,20}[0-9]`)

// phoneContextWords mark a preceding context where digit runs are usually
// identifiers rather than phone numbers.
var phoneContextWords = []string{"key", "token", "secret", "id", "hash"}

const phoneContextWindow = 20

// PhoneValidator finds phone numbers written in international form.
type PhoneValidator struct{}

// NewPhoneValidator creates a phone validator.
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

func (v *PhoneValidator) Name() string { return "phone" }

func (v *PhoneValidator) FindMatches(text string) []Match {
	var matches []Match
	seen := make(map[string]bool)

	for _, loc := range phoneCandidate.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if phoneInIdentifierContext(text, start) {
			continue
		}

		raw := text[start:end]
		num, err := phonenumbers.Parse(raw, "")
		if err != nil {
			continue
		}
		if !phonenumbers.IsValidNumber(num) && !phonenumbers.IsPossibleNumber(num) {
			continue
		}

		key := phonenumbers.Format(num, phonenumbers.E164)
		if seen[key] {
			continue
		}
		seen[key] = true
		matches = append(matches, Match{Text: raw, Start: start, End: end})
	}
	return matches
}

func phoneInIdentifierContext(text string, start int) bool {
	from := start - phoneContextWindow
	if from < 0 {
		from = 0
	}
	context := strings.ToLower(text[from:start])
	for _, word := range phoneContextWords {
		if strings.Contains(context, word) {
			return true
		}
	}
	return false
}
