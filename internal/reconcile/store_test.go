package reconcile

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/couchcryptid/dispatch-feed-etl/internal/domain"
)

// memStore is an in-memory domain.Store. Each unit of work edits a copy of
// the committed state that replaces it on Commit.
type memStore struct {
	records    []domain.IncidentRecord
	partitions map[domain.PartitionKey]bool
	nextID     int64

	beginErr  error
	commitErr error
	insertErr error

	commits   int
	rollbacks int
}

func newMemStore() *memStore {
	return &memStore{partitions: make(map[domain.PartitionKey]bool)}
}

func (s *memStore) Begin(context.Context) (domain.UnitOfWork, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	parts := make(map[domain.PartitionKey]bool, len(s.partitions))
	for k := range s.partitions {
		parts[k] = true
	}
	return &memUnit{
		store:      s,
		records:    append([]domain.IncidentRecord(nil), s.records...),
		partitions: parts,
		nextID:     s.nextID,
	}, nil
}

// byFingerprint returns committed records for fp ordered by ID.
func (s *memStore) byFingerprint(fp string) []domain.IncidentRecord {
	var out []domain.IncidentRecord
	for _, r := range s.records {
		if r.Fingerprint == fp {
			out = append(out, r)
		}
	}
	return out
}

type memUnit struct {
	store      *memStore
	records    []domain.IncidentRecord
	partitions map[domain.PartitionKey]bool
	nextID     int64
	done       bool
}

func (u *memUnit) Partition(_ context.Context, key domain.PartitionKey) (domain.Partition, error) {
	u.partitions[key] = true
	return &memPartition{unit: u, key: key}, nil
}

func (u *memUnit) Partitions(context.Context) ([]domain.PartitionKey, error) {
	var keys []domain.PartitionKey
	for k := range u.partitions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func (u *memUnit) Commit() error {
	if u.store.commitErr != nil {
		return u.store.commitErr
	}
	u.store.records = u.records
	u.store.partitions = u.partitions
	u.store.nextID = u.nextID
	u.store.commits++
	u.done = true
	return nil
}

func (u *memUnit) Rollback() error {
	if !u.done {
		u.store.rollbacks++
		u.done = true
	}
	return nil
}

type memPartition struct {
	unit *memUnit
	key  domain.PartitionKey
}

func (p *memPartition) Key() domain.PartitionKey { return p.key }

func (p *memPartition) Latest(_ context.Context, fp string) (domain.IncidentRecord, bool, error) {
	var (
		latest domain.IncidentRecord
		found  bool
	)
	for _, r := range p.unit.records {
		if r.PartitionKey != p.key || r.Fingerprint != fp {
			continue
		}
		if !found || r.FirstSeen.After(latest.FirstSeen) || (r.FirstSeen.Equal(latest.FirstSeen) && r.ID > latest.ID) {
			latest, found = r, true
		}
	}
	return latest, found, nil
}

func (p *memPartition) Insert(_ context.Context, rec domain.IncidentRecord) (int64, error) {
	if p.unit.store.insertErr != nil {
		return 0, p.unit.store.insertErr
	}
	p.unit.nextID++
	rec.ID = p.unit.nextID
	rec.PartitionKey = p.key
	p.unit.records = append(p.unit.records, rec)
	return rec.ID, nil
}

func (p *memPartition) Touch(_ context.Context, id int64, units int, lastSeen time.Time) error {
	return p.update(id, func(r *domain.IncidentRecord) {
		r.Units = units
		r.LastSeen = lastSeen
	})
}

func (p *memPartition) ListOpen(context.Context) ([]domain.IncidentRecord, error) {
	var out []domain.IncidentRecord
	for _, r := range p.unit.records {
		if r.PartitionKey == p.key && !r.Resolved {
			out = append(out, r)
		}
	}
	return out, nil
}

func (p *memPartition) Resolve(_ context.Context, id int64) error {
	return p.update(id, func(r *domain.IncidentRecord) { r.Resolved = true })
}

func (p *memPartition) update(id int64, fn func(*domain.IncidentRecord)) error {
	for i := range p.unit.records {
		if p.unit.records[i].ID == id && p.unit.records[i].PartitionKey == p.key {
			fn(&p.unit.records[i])
			return nil
		}
	}
	return errors.New("record not found")
}
