package domain

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidContact marks a contact address that cannot be normalized.
	ErrInvalidContact = errors.New("invalid contact address")

	// ErrNonIndividualContact marks group, broadcast, and other
	// non-individual addresses, which never get sessions.
	ErrNonIndividualContact = errors.New("contact is not an individual address")
)

// Suffixes of WhatsApp JIDs that identify individual accounts. Anything
// else carrying an "@" is rejected.
var individualJIDSuffixes = []string{"@s.whatsapp.net", "@c.us"}

// NormalizeContact canonicalizes a contact address to "+<digits>" E.164
// form. Accepts bare phone numbers with optional formatting characters and
// individual WhatsApp JIDs. Group and broadcast identifiers are rejected
// with ErrNonIndividualContact.
func NormalizeContact(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", ErrInvalidContact
	}

	if at := strings.IndexByte(s, '@'); at >= 0 {
		suffix := s[at:]
		if suffix == "@g.us" || suffix == "@broadcast" || suffix == "@newsletter" {
			return "", ErrNonIndividualContact
		}
		ok := false
		for _, allowed := range individualJIDSuffixes {
			if suffix == allowed {
				ok = true
				break
			}
		}
		if !ok {
			return "", ErrInvalidContact
		}
		s = s[:at]
	}

	// Group chat IDs embed a hyphen-separated creation timestamp.
	if strings.Contains(s, "-") && strings.Count(s, "-") > 1 {
		return "", ErrNonIndividualContact
	}

	var digits strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// formatting noise
		default:
			return "", ErrInvalidContact
		}
	}

	n := digits.Len()
	if n < 7 || n > 15 {
		return "", ErrInvalidContact
	}
	return "+" + digits.String(), nil
}
