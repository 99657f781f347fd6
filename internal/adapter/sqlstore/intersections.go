package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/dispatch-feed-etl/internal/domain"
)

// IntersectionRow is one index row together with the map node it came from.
type IntersectionRow struct {
	domain.IntersectionCandidate
	NodeID int64
}

// IntersectionIndex reads and loads the osm_intersections table.
type IntersectionIndex struct {
	db      *sql.DB
	dialect Dialect
}

// NewIntersectionIndex creates an index over an open, migrated database.
func NewIntersectionIndex(db *sql.DB, dialect Dialect) *IntersectionIndex {
	return &IntersectionIndex{db: db, dialect: dialect}
}

// Candidates returns up to limit rows where either street name contains
// anchor, case-insensitively, ordered by (street_a, street_b).
func (x *IntersectionIndex) Candidates(ctx context.Context, anchor string, limit int) ([]domain.IntersectionCandidate, error) {
	pattern := "%" + escapeLike(strings.ToUpper(anchor)) + "%"

	rows, err := x.db.QueryContext(ctx, rebind(x.dialect,
		`SELECT street_a, street_b, lat, lon FROM osm_intersections
		 WHERE UPPER(street_a) LIKE ? ESCAPE '\' OR UPPER(street_b) LIKE ? ESCAPE '\'
		 ORDER BY street_a, street_b
		 LIMIT ?`),
		pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search intersections for %q: %w", anchor, err)
	}
	defer rows.Close()

	var out []domain.IntersectionCandidate
	for rows.Next() {
		var c domain.IntersectionCandidate
		if err := rows.Scan(&c.StreetA, &c.StreetB, &c.Lat, &c.Lon); err != nil {
			return nil, fmt.Errorf("scan intersection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the number of rows in the index.
func (x *IntersectionIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM osm_intersections`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count intersections: %w", err)
	}
	return n, nil
}

// Replace swaps the whole index for rows in one transaction.
func (x *IntersectionIndex) Replace(ctx context.Context, rows []IntersectionRow) (err error) {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index load: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback index load: %w", rbErr))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM osm_intersections`); err != nil {
		return fmt.Errorf("clear intersections: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, rebind(x.dialect,
		`INSERT INTO osm_intersections (street_a, street_b, lat, lon, node_id) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare intersection insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err = stmt.ExecContext(ctx, r.StreetA, r.StreetB, r.Lat, r.Lon, r.NodeID); err != nil {
			return fmt.Errorf("insert intersection %s / %s: %w", r.StreetA, r.StreetB, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit index load: %w", err)
	}
	return nil
}

// CheckReadiness pings the index database.
func (x *IntersectionIndex) CheckReadiness(ctx context.Context) error {
	if err := x.db.PingContext(ctx); err != nil {
		return fmt.Errorf("index database unreachable: %w", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
