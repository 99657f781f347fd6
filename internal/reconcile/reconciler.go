// Package reconcile applies one polling cycle of feed events to the store.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/dispatch-feed-etl/internal/domain"
)

// DefaultWindow is how long an incident may stay open before the same
// fingerprint is treated as a new occurrence.
const DefaultWindow = 23 * time.Hour

// Summary reports what a committed cycle changed.
type Summary struct {
	Events     int
	Partitions int
	Inserted   int
	Updated    int
	Resolved   int
	Suppressed int
	Located    int
	Changes    []domain.Change
}

// Reconciler drives the incident lifecycle for one cycle at a time.
type Reconciler struct {
	store    domain.Store
	geocoder domain.Geocoder
	window   time.Duration
	logger   *slog.Logger
}

// New creates a Reconciler. geocoder may be nil, in which case incidents are
// stored without a location.
func New(store domain.Store, geocoder domain.Geocoder, window time.Duration, logger *slog.Logger) *Reconciler {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Reconciler{store: store, geocoder: geocoder, window: window, logger: logger}
}

// Reconcile applies events observed at now. All partitions are written in a
// single unit of work; on any error nothing is committed and the returned
// Summary is empty.
func (r *Reconciler) Reconcile(ctx context.Context, now time.Time, events []domain.Event) (sum Summary, err error) {
	uow, err := r.store.Begin(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("begin cycle: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := uow.Rollback(); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
	}()

	groups, order := groupByPartition(events)

	// Partitions that dropped out of the feed still need their open
	// incidents resolved.
	known, err := uow.Partitions(ctx)
	if err != nil {
		return Summary{}, err
	}
	keys := mergeKeys(order, known)

	sum.Events = len(events)
	sum.Partitions = len(keys)
	for _, key := range keys {
		p, err := uow.Partition(ctx, key)
		if err != nil {
			return Summary{}, err
		}
		if err := r.reconcilePartition(ctx, p, groups[key], now, &sum); err != nil {
			return Summary{}, err
		}
	}

	if err := uow.Commit(); err != nil {
		return Summary{}, err
	}
	committed = true
	return sum, nil
}

func (r *Reconciler) reconcilePartition(ctx context.Context, p domain.Partition, events []domain.Event, now time.Time, sum *Summary) error {
	visible := make(map[string]struct{}, len(events))
	for _, ev := range events {
		visible[ev.Fingerprint] = struct{}{}
		if err := r.observe(ctx, p, ev, now, sum); err != nil {
			return err
		}
	}
	return r.sweep(ctx, p, visible, now, sum)
}

// observe applies one feed row.
func (r *Reconciler) observe(ctx context.Context, p domain.Partition, ev domain.Event, now time.Time, sum *Summary) error {
	latest, found, err := p.Latest(ctx, ev.Fingerprint)
	if err != nil {
		return err
	}

	state, signal := domain.StateNone, domain.SignalObserved
	if found {
		state, signal = latest.State(), domain.ObservationSignal(latest, now, r.window)
	}

	switch action := domain.Transition(state, signal); action {
	case domain.ActionInsert:
		rec := domain.NewIncidentRecord(p.Key(), ev, now)
		rec = domain.EnrichWithLocation(ctx, rec, r.geocoder, r.logger)
		id, err := p.Insert(ctx, rec)
		if err != nil {
			return err
		}
		rec.ID = id
		sum.Inserted++
		if rec.Location != nil {
			sum.Located++
		}
		sum.Changes = append(sum.Changes, domain.Change{Kind: domain.ChangeOpened, At: now, Record: rec})
		r.logger.Debug("incident opened",
			"partition", p.Key(), "id", id, "fingerprint", ev.Fingerprint,
			"previous_state", state.String(), "located", rec.Location != nil,
		)

	case domain.ActionUpdate:
		if err := p.Touch(ctx, latest.ID, ev.Units, now); err != nil {
			return err
		}
		sum.Updated++

	case domain.ActionSuppress:
		sum.Suppressed++
		r.logger.Debug("resolved incident observed again inside window",
			"partition", p.Key(), "id", latest.ID, "fingerprint", ev.Fingerprint,
		)

	default:
		r.logger.Warn("no lifecycle action for observation",
			"partition", p.Key(), "state", state.String(), "signal", signal.String(), "action", action.String(),
		)
	}
	return nil
}

// sweep resolves open records that were not observed or outlived the window.
func (r *Reconciler) sweep(ctx context.Context, p domain.Partition, visible map[string]struct{}, now time.Time, sum *Summary) error {
	open, err := p.ListOpen(ctx)
	if err != nil {
		return err
	}

	for _, rec := range open {
		_, seen := visible[rec.Fingerprint]
		signal, ok := domain.SweepSignal(rec, seen, now, r.window)
		if !ok || domain.Transition(rec.State(), signal) != domain.ActionResolve {
			continue
		}
		if err := p.Resolve(ctx, rec.ID); err != nil {
			return err
		}
		rec.Resolved = true
		sum.Resolved++
		sum.Changes = append(sum.Changes, domain.Change{Kind: domain.ChangeResolved, At: now, Record: rec})
		r.logger.Debug("incident resolved",
			"partition", p.Key(), "id", rec.ID, "fingerprint", rec.Fingerprint, "signal", signal.String(),
		)
	}
	return nil
}

// groupByPartition buckets events by partition key, keeping feed order within
// each bucket. order lists keys in first-seen order.
func groupByPartition(events []domain.Event) (map[domain.PartitionKey][]domain.Event, []domain.PartitionKey) {
	groups := make(map[domain.PartitionKey][]domain.Event)
	var order []domain.PartitionKey
	for _, ev := range events {
		key := domain.PartitionKeyFor(ev.Agency)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], ev)
	}
	return groups, order
}

// mergeKeys appends registry keys missing from the cycle, sorted, after the
// cycle's own keys.
func mergeKeys(cycle, registry []domain.PartitionKey) []domain.PartitionKey {
	seen := make(map[domain.PartitionKey]struct{}, len(cycle))
	keys := append([]domain.PartitionKey(nil), cycle...)
	for _, k := range cycle {
		seen[k] = struct{}{}
	}

	var absent []domain.PartitionKey
	for _, k := range registry {
		if _, ok := seen[k]; !ok {
			absent = append(absent, k)
		}
	}
	sort.Slice(absent, func(i, j int) bool { return absent[i] < absent[j] })
	return append(keys, absent...)
}
