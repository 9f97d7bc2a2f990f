// ABOUTME: Credit card detection: digit runs that pass the Luhn check and match a known issuer.
// ABOUTME: Published test card numbers are ignored.

package detect

import (
	"regexp"
	"strconv"
	"strings"
)

var cardPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:\d{4}[\s\-]?){3}\d{4}\b`),
	regexp.MustCompile(`\b\d{15}\b`),
	regexp.MustCompile(`\b\d{13,19}\b`),
}

var testCards = map[string]bool{
	"4111111111111111": true,
	"5555555555554444": true,
	"5105105105105100": true,
	"378282246310005":  true,
	"371449635398431":  true,
	"6011111111111117": true,
	"6011000990139424": true,
	"3530111333300000": true,
	"3566002020360505": true,
	"4242424242424242": true,
	"4000056655665556": true,
}

// CreditCardValidator finds payment card numbers.
type CreditCardValidator struct{}

// NewCreditCardValidator creates a credit card validator.
func NewCreditCardValidator() *CreditCardValidator {
	return &CreditCardValidator{}
}

func (v *CreditCardValidator) Name() string { return "credit_card" }

func (v *CreditCardValidator) FindMatches(text string) []Match {
	var matches []Match
	seen := make(map[string]bool)

	for _, pattern := range cardPatterns {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			raw := text[loc[0]:loc[1]]
			digits := strings.Map(func(r rune) rune {
				if r >= '0' && r <= '9' {
					return r
				}
				return -1
			}, raw)

			if len(digits) < 13 || len(digits) > 19 || seen[digits] {
				continue
			}
			if !luhnValid(digits) || CardIssuer(digits) == "" || testCards[digits] {
				continue
			}
			seen[digits] = true
			matches = append(matches, Match{Text: raw, Start: loc[0], End: loc[1]})
		}
	}
	return matches
}

func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// CardIssuer names the card network for a digit string, or returns "" if the
// prefix and length match no known issuer.
func CardIssuer(digits string) string {
	n := len(digits)
	prefix := func(k int) int {
		if n < k {
			return -1
		}
		v, err := strconv.Atoi(digits[:k])
		if err != nil {
			return -1
		}
		return v
	}
	p2, p3, p4 := prefix(2), prefix(3), prefix(4)

	switch {
	case digits[0] == '4' && (n == 13 || n == 16 || n == 19):
		return "visa"
	case n == 16 && ((p2 >= 51 && p2 <= 55) || (p4 >= 2221 && p4 <= 2720)):
		return "mastercard"
	case n == 15 && (p2 == 34 || p2 == 37):
		return "amex"
	case (n == 16 || n == 19) && (p4 == 6011 || p2 == 65 || (p3 >= 644 && p3 <= 649)):
		return "discover"
	case n >= 16 && n <= 19 && p4 >= 3528 && p4 <= 3589:
		return "jcb"
	case n >= 14 && n <= 19 && ((p3 >= 300 && p3 <= 305) || p2 == 36 || p2 == 38):
		return "diners"
	}
	return ""
}
