package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fieldSeparator is the ASCII unit separator. It cannot occur in feed text, so
// ("AB", "C") and ("A", "BC") never hash to the same input.
const fieldSeparator = "\x1f"

// Fingerprint identifies an incident by its non-volatile fields. The unit
// count is excluded because it changes while a call is active.
func Fingerprint(agency, hhmm, description, street, crossStreets, municipality string) string {
	input := strings.Join([]string{agency, hhmm, description, street, crossStreets, municipality}, fieldSeparator)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
