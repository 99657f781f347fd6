package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("SPD", "1510", "ACCIDENT", "MAIN ST", "1ST AVE", "SHREVEPORT")
	b := Fingerprint("SPD", "1510", "ACCIDENT", "MAIN ST", "1ST AVE", "SHREVEPORT")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprint_SensitiveToEveryField(t *testing.T) {
	base := []string{"SPD", "1510", "ACCIDENT", "MAIN ST", "1ST AVE", "SHREVEPORT"}
	want := Fingerprint(base[0], base[1], base[2], base[3], base[4], base[5])

	for i := range base {
		fields := append([]string(nil), base...)
		fields[i] += "X"
		got := Fingerprint(fields[0], fields[1], fields[2], fields[3], fields[4], fields[5])
		assert.NotEqual(t, want, got, "field %d", i)
	}
}

func TestFingerprint_FieldBoundaries(t *testing.T) {
	a := Fingerprint("SP", "D1510", "", "", "", "")
	b := Fingerprint("SPD", "1510", "", "", "", "")
	assert.NotEqual(t, a, b)
}

func TestFingerprint_IgnoresUnits(t *testing.T) {
	now := time.Date(2024, 4, 26, 16, 0, 0, 0, time.UTC)
	row := RawRow{Agency: "SPD", Time: "1510", Units: "1", Description: "ACCIDENT", Street: "MAIN ST", CrossStreets: "1ST AVE", Municipality: "SHREVEPORT"}
	more := row
	more.Units = "4"

	assert.Equal(t, NewEvent(row, now).Fingerprint, NewEvent(more, now).Fingerprint)
}
