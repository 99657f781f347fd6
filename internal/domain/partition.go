package domain

import "strings"

const (
	partitionPrefix  = "agency_"
	partitionCodeLen = 3
)

// PartitionKey names the logical store partition an incident belongs to.
type PartitionKey string

// PartitionKeyFor derives the partition key from an agency code: the first
// three characters, lowercased, with anything outside [a-z0-9] replaced by
// an underscore. "CFD1" -> "agency_cfd".
func PartitionKeyFor(agency string) PartitionKey {
	code := []rune(strings.TrimSpace(agency))
	if len(code) > partitionCodeLen {
		code = code[:partitionCodeLen]
	}
	if len(code) == 0 {
		return partitionPrefix + "unknown"
	}

	var b strings.Builder
	b.WriteString(partitionPrefix)
	for _, r := range strings.ToLower(string(code)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return PartitionKey(b.String())
}
