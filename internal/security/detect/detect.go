// ABOUTME: Validator interface and the mutable validator Set used to scan backend responses.
// ABOUTME: Also provides masking so detected values can be logged without leaking them.

package detect

import (
	"strings"
	"sync"
)

// maxExamples is how many masked examples a Finding keeps per validator.
const maxExamples = 3

// Match is one piece of sensitive data found in a text, with byte offsets.
type Match struct {
	Text  string
	Start int
	End   int
}

// Validator finds one category of sensitive data.
type Validator interface {
	Name() string
	FindMatches(text string) []Match
}

// Contains reports whether v finds anything in text.
func Contains(v Validator, text string) bool {
	return len(v.FindMatches(text)) > 0
}

// Mask hides all but the first two and last two characters of s.
// Values of four characters or fewer are hidden entirely.
func Mask(s string) string {
	r := []rune(s)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:2]) + strings.Repeat("*", len(r)-4) + string(r[len(r)-2:])
}

// Redact returns text with every match from v masked in place.
func Redact(v Validator, text string) string {
	matches := v.FindMatches(text)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, m := range sortedNonOverlapping(matches) {
		b.WriteString(text[last:m.Start])
		b.WriteString(Mask(m.Text))
		last = m.End
	}
	b.WriteString(text[last:])
	return b.String()
}

func sortedNonOverlapping(matches []Match) []Match {
	sorted := make([]Match, len(matches))
	copy(sorted, matches)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Start < sorted[j-1].Start; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	out := sorted[:0]
	end := -1
	for _, m := range sorted {
		if m.Start < end {
			continue
		}
		out = append(out, m)
		end = m.End
	}
	return out
}

// Finding summarizes the matches of one validator.
type Finding struct {
	Validator string
	Count     int
	// Examples holds up to three masked matches.
	Examples []string
}

// Set is an ordered, mutable collection of validators. It is safe for
// concurrent use.
type Set struct {
	mu         sync.RWMutex
	validators []Validator
}

// NewSet creates a set holding the given validators in order.
func NewSet(validators ...Validator) *Set {
	s := &Set{}
	for _, v := range validators {
		s.Add(v)
	}
	return s
}

// DefaultSet returns the built-in validators: phone, email, password,
// api_key and credit_card.
func DefaultSet() *Set {
	return NewSet(
		NewPhoneValidator(),
		NewEmailValidator(),
		NewPasswordValidator(),
		NewAPIKeyValidator(),
		NewCreditCardValidator(),
	)
}

// Add appends v, replacing any validator with the same name in place.
func (s *Set) Add(v Validator) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.validators {
		if existing.Name() == v.Name() {
			s.validators[i] = v
			return
		}
	}
	s.validators = append(s.validators, v)
}

// Remove drops the named validator and reports whether it was present.
func (s *Set) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, v := range s.validators {
		if v.Name() == name {
			s.validators = append(s.validators[:i], s.validators[i+1:]...)
			return true
		}
	}
	return false
}

// Names returns validator names in scan order.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.validators))
	for i, v := range s.validators {
		names[i] = v.Name()
	}
	return names
}

// Scan runs every validator over text and returns one Finding per
// validator that matched, in scan order.
func (s *Set) Scan(text string) []Finding {
	s.mu.RLock()
	validators := make([]Validator, len(s.validators))
	copy(validators, s.validators)
	s.mu.RUnlock()

	var findings []Finding
	for _, v := range validators {
		matches := v.FindMatches(text)
		if len(matches) == 0 {
			continue
		}
		f := Finding{Validator: v.Name(), Count: len(matches)}
		for i := 0; i < len(matches) && i < maxExamples; i++ {
			f.Examples = append(f.Examples, Mask(matches[i].Text))
		}
		findings = append(findings, f)
	}
	return findings
}
