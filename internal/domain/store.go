package domain

import (
	"context"
	"time"
)

// Store opens units of work spanning every partition touched by a cycle.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// UnitOfWork is one atomic cycle. Nothing is visible to other readers until
// Commit; Rollback after Commit is a no-op.
type UnitOfWork interface {
	// Partition returns the partition for key, registering it if absent.
	Partition(ctx context.Context, key PartitionKey) (Partition, error)
	// Partitions lists every registered partition key in sorted order.
	Partitions(ctx context.Context) ([]PartitionKey, error)
	Commit() error
	Rollback() error
}

// Partition is the record set of one agency prefix.
type Partition interface {
	Key() PartitionKey
	// Latest returns the record with the greatest first-seen for fingerprint.
	Latest(ctx context.Context, fingerprint string) (IncidentRecord, bool, error)
	// Insert stores rec and returns its assigned ID.
	Insert(ctx context.Context, rec IncidentRecord) (int64, error)
	// Touch records a repeat observation.
	Touch(ctx context.Context, id int64, units int, lastSeen time.Time) error
	// ListOpen returns unresolved records ordered by ID.
	ListOpen(ctx context.Context) ([]IncidentRecord, error)
	// Resolve marks a record resolved.
	Resolve(ctx context.Context, id int64) error
}
