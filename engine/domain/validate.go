package domain

import (
	"strings"
	"unicode"
)

// MinQueryLen is the minimum rune count for a retrieval query.
const MinQueryLen = 3

// ValidateCitation checks the shape of an incoming citation. Act aliases
// are resolved later by the alias table; here we only reject structurally
// broken input.
func ValidateCitation(c Citation) error {
	act := strings.TrimSpace(c.Act)
	if act == "" {
		return NewValidationError("act", c.Act, ErrInvalidCitation)
	}
	sec := strings.TrimSpace(c.Section)
	if sec == "" {
		return NewValidationError("section", c.Section, ErrEmptySection)
	}
	for _, r := range sec {
		if !unicode.IsDigit(r) && !unicode.IsLetter(r) && r != '(' && r != ')' && r != '-' {
			return NewValidationError("section", c.Section, ErrInvalidCitation)
		}
	}
	return nil
}

// ValidateQuery checks a retrieval query string.
func ValidateQuery(text string) error {
	if len([]rune(strings.TrimSpace(text))) < MinQueryLen {
		return NewValidationError("query", text, ErrQueryTooShort)
	}
	return nil
}

// ValidateSection checks a section record before it enters the ingestion
// pipeline. The uniqueness of (act code, section number) is enforced by
// the relational store; this gate catches malformed producer output.
func ValidateSection(s Section) error {
	if strings.TrimSpace(s.ActCode) == "" {
		return NewValidationError("act_code", s.ActCode, ErrInvalidCitation)
	}
	if strings.TrimSpace(s.SectionNumber) == "" {
		return NewValidationError("section_number", s.SectionNumber, ErrEmptySection)
	}
	if strings.TrimSpace(s.LegalText) == "" {
		return NewValidationError("legal_text", s.Key(), ErrInvalidCitation)
	}
	if s.Era != EraLegacy && s.Era != EraCurrent {
		return NewValidationError("era", string(s.Era), ErrInvalidCitation)
	}
	return nil
}
