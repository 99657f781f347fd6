package domain

import (
	"strconv"
	"strings"
	"time"
)

// FieldCount is the number of cells in a well-formed feed row.
const FieldCount = 7

// RawRow is one table row of the dispatch feed with whitespace already trimmed.
type RawRow struct {
	Agency       string
	Time         string
	Units        string
	Description  string
	Street       string
	CrossStreets string
	Municipality string
}

// RowFromCells maps ordered cell texts onto a RawRow. It reports false when
// the number of cells does not match the feed schema.
func RowFromCells(cells []string) (RawRow, bool) {
	if len(cells) != FieldCount {
		return RawRow{}, false
	}
	return RawRow{
		Agency:       cells[0],
		Time:         cells[1],
		Units:        cells[2],
		Description:  cells[3],
		Street:       cells[4],
		CrossStreets: cells[5],
		Municipality: cells[6],
	}, true
}

// Event is the typed projection of a RawRow.
type Event struct {
	Agency       string
	Time         string
	Units        int
	Description  string
	Street       string
	CrossStreets string
	Municipality string
	OccurredAt   time.Time
	Fingerprint  string
}

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Midpoint returns the arithmetic midpoint of two coordinates.
func Midpoint(a, b Coordinate) Coordinate {
	return Coordinate{Lat: (a.Lat + b.Lat) / 2, Lon: (a.Lon + b.Lon) / 2}
}

// IncidentRecord is the persisted form of an incident.
type IncidentRecord struct {
	ID           int64        `json:"id"`
	PartitionKey PartitionKey `json:"partition"`
	Agency       string       `json:"agency"`
	Time         string       `json:"time"`
	Units        int          `json:"units"`
	Description  string       `json:"description"`
	Street       string       `json:"street"`
	CrossStreets string       `json:"cross_streets"`
	Municipality string       `json:"municipality"`
	OccurredAt   time.Time    `json:"occurred_at"`
	Fingerprint  string       `json:"fingerprint"`
	FirstSeen    time.Time    `json:"first_seen"`
	LastSeen     time.Time    `json:"last_seen"`
	Resolved     bool         `json:"resolved"`
	Location     *Coordinate  `json:"location,omitempty"`
}

// NewIncidentRecord builds an open record for an event first observed at now.
func NewIncidentRecord(key PartitionKey, ev Event, now time.Time) IncidentRecord {
	return IncidentRecord{
		PartitionKey: key,
		Agency:       ev.Agency,
		Time:         ev.Time,
		Units:        ev.Units,
		Description:  ev.Description,
		Street:       ev.Street,
		CrossStreets: ev.CrossStreets,
		Municipality: ev.Municipality,
		OccurredAt:   ev.OccurredAt,
		Fingerprint:  ev.Fingerprint,
		FirstSeen:    now,
		LastSeen:     now,
	}
}

// Age is the time elapsed since the record was first seen.
func (r IncidentRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.FirstSeen)
}

// IntersectionCandidate is one row of the intersection index.
type IntersectionCandidate struct {
	StreetA string
	StreetB string
	Lat     float64
	Lon     float64
}

// Coordinate returns the candidate's location.
func (c IntersectionCandidate) Coordinate() Coordinate {
	return Coordinate{Lat: c.Lat, Lon: c.Lon}
}

// ChangeKind names a lifecycle change published after a committed cycle.
type ChangeKind string

const (
	ChangeOpened   ChangeKind = "opened"
	ChangeResolved ChangeKind = "resolved"
)

// Change is an incident that was inserted or resolved during a cycle.
type Change struct {
	Kind   ChangeKind
	At     time.Time
	Record IncidentRecord
}

// NewEvent projects a feed row into an Event. observedAt is the poll time and
// supplies the date for the row's HHMM time.
func NewEvent(row RawRow, observedAt time.Time) Event {
	return Event{
		Agency:       row.Agency,
		Time:         row.Time,
		Units:        parseIntOrZero(row.Units),
		Description:  row.Description,
		Street:       row.Street,
		CrossStreets: row.CrossStreets,
		Municipality: row.Municipality,
		OccurredAt:   occurrenceTime(observedAt, row.Time),
		Fingerprint:  Fingerprint(row.Agency, row.Time, row.Description, row.Street, row.CrossStreets, row.Municipality),
	}
}

// parseIntOrZero parses a string as int, returning 0 on failure.
func parseIntOrZero(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

// occurrenceTime combines the poll date with an HHMM time string (e.g. "1510"
// -> 15:10). A time later than the poll time is dated the previous day. An
// unparseable time yields the poll time itself.
func occurrenceTime(observedAt time.Time, hhmm string) time.Time {
	hhmm = strings.TrimSpace(hhmm)
	if len(hhmm) < 3 || len(hhmm) > 4 {
		return observedAt
	}
	if len(hhmm) == 3 {
		hhmm = "0" + hhmm
	}

	hour, errH := strconv.Atoi(hhmm[:2])
	mins, errM := strconv.Atoi(hhmm[2:])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || mins < 0 || mins > 59 {
		return observedAt
	}

	t := time.Date(
		observedAt.Year(), observedAt.Month(), observedAt.Day(),
		hour, mins, 0, 0, observedAt.Location(),
	)
	if t.After(observedAt) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}
