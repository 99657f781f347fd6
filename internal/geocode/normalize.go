package geocode

import (
	"regexp"
	"strings"
	"unicode"
)

// crossStreetSep splits "LINE AVE & YOUREE DR", "A/B" and "A AND B". The
// word boundary keeps names like ANDERSON intact.
var crossStreetSep = regexp.MustCompile(`\s*(?:&|/|\bAND\b)\s*`)

// noiseWords are tokens that carry no identifying power when searching the
// index: compass directions, road-type suffixes and block descriptors.
var noiseWords = map[string]struct{}{
	"N": {}, "S": {}, "E": {}, "W": {}, "NE": {}, "NW": {}, "SE": {}, "SW": {},
	"NORTH": {}, "SOUTH": {}, "EAST": {}, "WEST": {},
	"ST": {}, "STREET": {}, "AVE": {}, "AV": {}, "AVENUE": {},
	"BLVD": {}, "BOULEVARD": {}, "LOOP": {}, "DR": {}, "DRIVE": {},
	"HWY": {}, "HIGHWAY": {}, "RD": {}, "ROAD": {}, "LN": {}, "LANE": {},
	"CT": {}, "COURT": {}, "CIR": {}, "CIRCLE": {}, "PL": {}, "PLACE": {},
	"PKWY": {}, "PARKWAY": {}, "TER": {}, "TERRACE": {}, "TRL": {}, "TRAIL": {},
	"WAY": {}, "EXPY": {}, "EXPRESSWAY": {}, "FWY": {}, "FREEWAY": {},
	"BLOCK": {}, "BLK": {}, "DEAD": {}, "END": {}, "OF": {},
}

// normalize uppercases s and collapses runs of whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

// SplitCrossStreets uppercases s and returns its trimmed, non-empty
// cross-street segments.
func SplitCrossStreets(s string) []string {
	s = normalize(s)
	if s == "" {
		return nil
	}
	var segments []string
	for _, part := range crossStreetSep.Split(s, -1) {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// tokens splits s on anything that is not a letter or digit.
func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// anchorToken picks the most distinctive word of a street description: the
// longest token that is neither noise nor purely numeric. Ties go to the
// first occurrence. It returns "" when nothing qualifies.
func anchorToken(s string) string {
	var anchor string
	for _, tok := range tokens(normalize(s)) {
		if _, noise := noiseWords[tok]; noise || isNumeric(tok) {
			continue
		}
		if len([]rune(tok)) > len([]rune(anchor)) {
			anchor = tok
		}
	}
	return anchor
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
