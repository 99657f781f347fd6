package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/dispatch-feed-etl/internal/domain"
)

const incidentColumns = `id, partition_key, agency, call_time, units, description, street,
	cross_streets, municipality, occurred_at, fingerprint, first_seen, last_seen,
	resolved, latitude, longitude`

// Store implements domain.Store over a single incidents table partitioned by
// the partition_key column. Partition keys are always bound parameters.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New creates a Store over an open, migrated database.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Begin starts a unit of work spanning every partition of one cycle.
func (s *Store) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &unitOfWork{tx: tx, dialect: s.dialect}, nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

type unitOfWork struct {
	tx      *sql.Tx
	dialect Dialect
}

func (u *unitOfWork) query(q string) string { return rebind(u.dialect, q) }

func (u *unitOfWork) Partition(ctx context.Context, key domain.PartitionKey) (domain.Partition, error) {
	_, err := u.tx.ExecContext(ctx, u.query(
		`INSERT INTO partitions (partition_key, created_at) VALUES (?, ?)
		 ON CONFLICT (partition_key) DO NOTHING`),
		string(key), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("register partition %s: %w", key, err)
	}
	return &partition{uow: u, key: key}, nil
}

func (u *unitOfWork) Partitions(ctx context.Context) ([]domain.PartitionKey, error) {
	rows, err := u.tx.QueryContext(ctx, `SELECT partition_key FROM partitions ORDER BY partition_key`)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	defer rows.Close()

	var keys []domain.PartitionKey
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan partition: %w", err)
		}
		keys = append(keys, domain.PartitionKey(k))
	}
	return keys, rows.Err()
}

func (u *unitOfWork) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (u *unitOfWork) Rollback() error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

type partition struct {
	uow *unitOfWork
	key domain.PartitionKey
}

func (p *partition) Key() domain.PartitionKey { return p.key }

func (p *partition) Latest(ctx context.Context, fingerprint string) (domain.IncidentRecord, bool, error) {
	row := p.uow.tx.QueryRowContext(ctx, p.uow.query(
		`SELECT `+incidentColumns+` FROM incidents
		 WHERE partition_key = ? AND fingerprint = ?
		 ORDER BY first_seen DESC, id DESC
		 LIMIT 1`),
		string(p.key), fingerprint)

	rec, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IncidentRecord{}, false, nil
	}
	if err != nil {
		return domain.IncidentRecord{}, false, fmt.Errorf("latest incident in %s: %w", p.key, err)
	}
	return rec, true, nil
}

func (p *partition) Insert(ctx context.Context, rec domain.IncidentRecord) (int64, error) {
	var lat, lon sql.NullFloat64
	if rec.Location != nil {
		lat = sql.NullFloat64{Float64: rec.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: rec.Location.Lon, Valid: true}
	}

	var id int64
	err := p.uow.tx.QueryRowContext(ctx, p.uow.query(
		`INSERT INTO incidents (partition_key, agency, call_time, units, description, street,
			cross_streets, municipality, occurred_at, fingerprint, first_seen, last_seen,
			resolved, latitude, longitude)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`),
		string(p.key), rec.Agency, rec.Time, rec.Units, rec.Description, rec.Street,
		rec.CrossStreets, rec.Municipality, dbTime(rec.OccurredAt), rec.Fingerprint,
		dbTime(rec.FirstSeen), dbTime(rec.LastSeen), rec.Resolved, lat, lon,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert incident in %s: %w", p.key, err)
	}
	return id, nil
}

func (p *partition) Touch(ctx context.Context, id int64, units int, lastSeen time.Time) error {
	res, err := p.uow.tx.ExecContext(ctx, p.uow.query(
		`UPDATE incidents SET units = ?, last_seen = ?
		 WHERE id = ? AND partition_key = ? AND resolved = ?`),
		units, dbTime(lastSeen), id, string(p.key), false)
	if err != nil {
		return fmt.Errorf("update incident %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

func (p *partition) ListOpen(ctx context.Context) ([]domain.IncidentRecord, error) {
	rows, err := p.uow.tx.QueryContext(ctx, p.uow.query(
		`SELECT `+incidentColumns+` FROM incidents
		 WHERE partition_key = ? AND resolved = ?
		 ORDER BY id`),
		string(p.key), false)
	if err != nil {
		return nil, fmt.Errorf("list open incidents in %s: %w", p.key, err)
	}
	defer rows.Close()

	var out []domain.IncidentRecord
	for rows.Next() {
		rec, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *partition) Resolve(ctx context.Context, id int64) error {
	res, err := p.uow.tx.ExecContext(ctx, p.uow.query(
		`UPDATE incidents SET resolved = ? WHERE id = ? AND partition_key = ?`),
		true, id, string(p.key))
	if err != nil {
		return fmt.Errorf("resolve incident %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIncident(s scanner) (domain.IncidentRecord, error) {
	var (
		rec      domain.IncidentRecord
		key      string
		lat, lon sql.NullFloat64
	)
	err := s.Scan(
		&rec.ID, &key, &rec.Agency, &rec.Time, &rec.Units, &rec.Description, &rec.Street,
		&rec.CrossStreets, &rec.Municipality, &rec.OccurredAt, &rec.Fingerprint,
		&rec.FirstSeen, &rec.LastSeen, &rec.Resolved, &lat, &lon,
	)
	if err != nil {
		return domain.IncidentRecord{}, err
	}
	rec.PartitionKey = domain.PartitionKey(key)
	rec.OccurredAt = rec.OccurredAt.UTC()
	rec.FirstSeen = rec.FirstSeen.UTC()
	rec.LastSeen = rec.LastSeen.UTC()
	if lat.Valid && lon.Valid {
		rec.Location = &domain.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
	}
	return rec, nil
}

// dbTime normalizes timestamps to UTC at microsecond precision, the finest
// resolution PostgreSQL keeps, so values compare equal after a round trip.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("incident %d: %w", id, ErrNotFound)
	}
	return nil
}
