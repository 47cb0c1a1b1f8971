package ledger

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName canonicalizes a user-supplied entity name (category,
// account, user) before storage and uniqueness comparison.
//
// Names are NFC-normalized so that visually identical strings with
// different Unicode composition ("Café" as 4 or 5 code points) collide
// on the UNIQUE index instead of silently coexisting. Surrounding
// whitespace is trimmed; interior spacing is preserved as typed.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
