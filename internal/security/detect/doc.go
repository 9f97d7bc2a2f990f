// ABOUTME: Package detect finds sensitive data in text: phones, emails, passwords, API keys, cards.
// ABOUTME: Validators are pluggable through Set so the security engine can add or drop categories.

// Package detect provides the sensitive-data validators used to inspect
// backend responses.
//
// Each [Validator] recognizes one category and reports byte-offset matches.
// A [Set] holds the active validators; the security engine scans every
// backend response through it. Validators can be added or removed at runtime.
//
// Detection leans towards precision: placeholder and test values (sample API
// keys, published test card numbers, "changeme" passwords) are not reported.
package detect
