// Package index builds intersection index rows from road-network junctions.
//
// The input is one line per (junction node, street) incidence, as exported
// from OpenStreetMap: node_id,lat,lon,street_name. Every node touched by two
// or more distinct street names yields one row per unordered pair of names.
package index

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/dispatch-feed-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/dispatch-feed-etl/internal/domain"
)

// Incidence is one named road meeting a junction node.
type Incidence struct {
	NodeID int64
	Lat    float64
	Lon    float64
	Street string
}

var requiredColumns = []string{"node_id", "lat", "lon", "street_name"}

// ReadIncidences parses a headed CSV. Columns are located by name so extra
// columns are ignored. Rows with an empty street name are skipped; a
// street_name holding several names separated by ";" yields one incidence
// per name.
func ReadIncidences(r io.Reader) ([]Incidence, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty incidence file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var out []Incidence
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		field := func(name string) string {
			if i := col[name]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		nodeID, err := strconv.ParseInt(field("node_id"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: node_id: %w", line, err)
		}
		lat, err := strconv.ParseFloat(field("lat"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: lat: %w", line, err)
		}
		lon, err := strconv.ParseFloat(field("lon"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: lon: %w", line, err)
		}
		for _, name := range strings.Split(field("street_name"), ";") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, Incidence{NodeID: nodeID, Lat: lat, Lon: lon, Street: name})
			}
		}
	}
}

// BuildPairs groups incidences by node and emits every unordered pair of
// distinct uppercase street names, with StreetA < StreetB. Nodes are visited
// in input order and a node's location is that of its first incidence. When
// the same pair meets at several nodes only the first is kept.
func BuildPairs(incidences []Incidence) []sqlstore.IntersectionRow {
	type node struct {
		id       int64
		lat, lon float64
		streets  []string
	}
	var nodes []*node
	byID := make(map[int64]*node)
	for _, inc := range incidences {
		n, ok := byID[inc.NodeID]
		if !ok {
			n = &node{id: inc.NodeID, lat: inc.Lat, lon: inc.Lon}
			byID[inc.NodeID] = n
			nodes = append(nodes, n)
		}
		n.streets = append(n.streets, strings.Join(strings.Fields(strings.ToUpper(inc.Street)), " "))
	}

	type pair struct{ a, b string }
	seen := make(map[pair]struct{})
	var rows []sqlstore.IntersectionRow
	for _, n := range nodes {
		slices.Sort(n.streets)
		streets := slices.Compact(n.streets)
		for i := 0; i < len(streets); i++ {
			for j := i + 1; j < len(streets); j++ {
				k := pair{streets[i], streets[j]}
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
				rows = append(rows, sqlstore.IntersectionRow{
					IntersectionCandidate: domain.IntersectionCandidate{
						StreetA: k.a,
						StreetB: k.b,
						Lat:     n.lat,
						Lon:     n.lon,
					},
					NodeID: n.id,
				})
			}
		}
	}
	return rows
}
