package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/dispatch-feed-etl/internal/adapter/feed"
	"github.com/couchcryptid/dispatch-feed-etl/internal/domain"
	"github.com/couchcryptid/dispatch-feed-etl/internal/observability"
	"github.com/couchcryptid/dispatch-feed-etl/internal/reconcile"
)

// Fetcher downloads the current feed page.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Reconciler applies one cycle's events to the incident store.
type Reconciler interface {
	Reconcile(ctx context.Context, now time.Time, events []domain.Event) (reconcile.Summary, error)
}

// ChangePublisher forwards committed lifecycle changes downstream.
type ChangePublisher interface {
	Publish(ctx context.Context, changes []domain.Change) error
}

// Pipeline runs the fetch-parse-reconcile cycle.
type Pipeline struct {
	fetcher    Fetcher
	reconciler Reconciler
	publisher  ChangePublisher
	interval   time.Duration
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
}

// New creates a Pipeline. publisher may be nil when the change feed is
// disabled.
func New(f Fetcher, r Reconciler, publisher ChangePublisher, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:    f,
		reconciler: r,
		publisher:  publisher,
		interval:   interval,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once a cycle has committed, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no polling cycle has committed yet")
	}
	return nil
}

// Run polls immediately and then every interval until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "poll_interval", p.interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	s := newScheduler(p.interval, func() { _ = p.RunCycle(ctx) }, p.logger)
	s.start()

	<-ctx.Done()
	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	s.stop()
	return nil
}

// RunCycle performs one poll. Failures are logged and returned; a fetch or
// parse failure skips reconciliation so a broken page never resolves the
// open incidents.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	start := p.clock.Now()
	now := start.UTC().Truncate(time.Microsecond)
	logger := p.logger.With("cycle_id", uuid.NewString())

	page, err := p.fetcher.Fetch(ctx)
	if err != nil {
		p.metrics.Cycles.WithLabelValues("fetch_failed").Inc()
		logger.Warn("fetch failed, skipping cycle", "error", err)
		return err
	}

	parsed, err := feed.ParsePage(page)
	if err != nil {
		p.metrics.Cycles.WithLabelValues("parse_failed").Inc()
		logger.Warn("unexpected feed page, skipping cycle", "error", err, "bytes", len(page))
		return err
	}
	p.metrics.RowsParsed.Add(float64(len(parsed.Rows)))
	if parsed.Dropped > 0 {
		p.metrics.RowsDropped.Add(float64(parsed.Dropped))
		logger.Debug("dropped malformed rows", "count", parsed.Dropped)
	}

	events := make([]domain.Event, len(parsed.Rows))
	for i, row := range parsed.Rows {
		events[i] = domain.NewEvent(row, now)
	}

	sum, err := p.reconciler.Reconcile(ctx, now, events)
	if err != nil {
		p.metrics.Cycles.WithLabelValues("reconcile_failed").Inc()
		logger.Error("reconcile failed, cycle rolled back", "error", err, "events", len(events))
		return err
	}

	p.recordCommitted(sum, now, p.clock.Since(start))
	logger.Info("cycle committed",
		"events", sum.Events,
		"partitions", sum.Partitions,
		"inserted", sum.Inserted,
		"updated", sum.Updated,
		"resolved", sum.Resolved,
		"suppressed", sum.Suppressed,
		"located", sum.Located,
	)

	p.publish(ctx, logger, sum.Changes)
	return nil
}

func (p *Pipeline) recordCommitted(sum reconcile.Summary, now time.Time, elapsed time.Duration) {
	p.metrics.Cycles.WithLabelValues("committed").Inc()
	p.metrics.CycleDuration.Observe(elapsed.Seconds())
	p.metrics.LastCommittedCycle.Set(float64(now.Unix()))
	p.metrics.Transitions.WithLabelValues(domain.ActionInsert.String()).Add(float64(sum.Inserted))
	p.metrics.Transitions.WithLabelValues(domain.ActionUpdate.String()).Add(float64(sum.Updated))
	p.metrics.Transitions.WithLabelValues(domain.ActionResolve.String()).Add(float64(sum.Resolved))
	p.metrics.Transitions.WithLabelValues(domain.ActionSuppress.String()).Add(float64(sum.Suppressed))
	p.ready.Store(true)
}

// publish forwards changes after commit. A publish failure does not undo the
// committed cycle.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, changes []domain.Change) {
	if p.publisher == nil || len(changes) == 0 {
		return
	}
	if err := p.publisher.Publish(ctx, changes); err != nil {
		p.metrics.PublishErrors.Inc()
		logger.Error("publish changes failed", "error", err, "count", len(changes))
		return
	}
	p.metrics.ChangesPublished.Add(float64(len(changes)))
}
