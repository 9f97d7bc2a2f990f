// ABOUTME: Email address detection: a permissive pattern confirmed by an RFC 5322 address parse.
// ABOUTME: Matches are kept only when net/mail accepts the whole candidate as a bare address.

package detect

import (
	"net/mail"
	"regexp"
)

var emailPattern = regexp.MustCompile(`(?i)\b[A-Za-z0-9][A-Za-z0-9._%+-]*@[A-Za-z0-9][A-Za-z0-9.-]*\.[A-Za-z]{2,}\b`)

// EmailValidator finds email addresses.
type EmailValidator struct{}

// NewEmailValidator creates an email validator.
func NewEmailValidator() *EmailValidator {
	return &EmailValidator{}
}

func (v *EmailValidator) Name() string { return "email" }

func (v *EmailValidator) FindMatches(text string) []Match {
	var matches []Match
	for _, loc := range emailPattern.FindAllStringIndex(text, -1) {
		candidate := text[loc[0]:loc[1]]
		addr, err := mail.ParseAddress(candidate)
		if err != nil || addr.Address != candidate {
			continue
		}
		matches = append(matches, Match{Text: candidate, Start: loc[0], End: loc[1]})
	}
	return matches
}
