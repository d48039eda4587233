package service

import (
	"context"
	"log/slog"

	"lifeflow/internal/activity/models"
	"lifeflow/internal/platform/metrics"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/requestcontext"
)

// Store persists activity entries.
type Store interface {
	Append(ctx context.Context, entry models.Entry) error
	ListByUser(ctx context.Context, userID id.UserID, page id.Page) ([]models.Entry, int, error)
	ListAll(ctx context.Context, page id.Page) ([]models.Entry, int, error)
}

// Sink mirrors entries to an external system after they are stored.
type Sink interface {
	Publish(ctx context.Context, entry models.Entry) error
}

const defaultSinkBuffer = 1024

// Recorder appends activity entries. Recording never fails the caller:
// persistence errors are logged and counted.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	sink    Sink
	outbox  chan models.Entry
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// WithSink mirrors stored entries to sink through a bounded buffer drained
// by Run. When the buffer is full the entry is dropped from the mirror only.
func WithSink(sink Sink, buffer int) Option {
	return func(r *Recorder) {
		if buffer <= 0 {
			buffer = defaultSinkBuffer
		}
		r.sink = sink
		r.outbox = make(chan models.Entry, buffer)
	}
}

func New(store Store, opts ...Option) *Recorder {
	r := &Recorder{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record enriches the entry from the request context and persists it.
func (r *Recorder) Record(ctx context.Context, entry models.Entry) {
	if r == nil || r.store == nil {
		return
	}
	entry = enrich(ctx, entry)

	if err := r.store.Append(context.WithoutCancel(ctx), entry); err != nil {
		r.metrics.IncrementActivityWriteFailures()
		r.logger.WarnContext(ctx, "failed to record activity",
			"request_id", requestcontext.RequestID(ctx),
			"action", entry.Action,
			"error", err,
		)
		return
	}

	if r.outbox != nil {
		select {
		case r.outbox <- entry:
		default:
			r.logger.WarnContext(ctx, "activity sink buffer full, entry not mirrored",
				"action", entry.Action,
				"activity_id", entry.ID.String(),
			)
		}
	}
}

func enrich(ctx context.Context, entry models.Entry) models.Entry {
	if entry.ID.IsNil() {
		entry.ID = id.NewActivityID()
	}
	if entry.UserID.IsNil() {
		entry.UserID = requestcontext.UserID(ctx)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = requestcontext.Now(ctx)
	}
	if entry.IPAddress == "" {
		entry.IPAddress = requestcontext.ClientIP(ctx)
	}
	if entry.UserAgent == "" {
		entry.UserAgent = requestcontext.UserAgent(ctx)
	}
	if entry.Device == "" {
		entry.Device = requestcontext.Device(ctx)
	}
	return entry
}

// Run drains the sink buffer until ctx is cancelled. It is a no-op when no
// sink is configured.
func (r *Recorder) Run(ctx context.Context) error {
	if r.outbox == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-r.outbox:
			if err := r.sink.Publish(ctx, entry); err != nil {
				r.logger.WarnContext(ctx, "failed to mirror activity",
					"action", entry.Action,
					"activity_id", entry.ID.String(),
					"error", err,
				)
			}
		}
	}
}

// ListByUser returns a user's own entries, newest first.
func (r *Recorder) ListByUser(ctx context.Context, userID id.UserID, page id.Page) ([]models.Entry, int, error) {
	entries, total, err := r.store.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load activities")
	}
	return entries, total, nil
}

// ListAll returns every user's entries, newest first.
func (r *Recorder) ListAll(ctx context.Context, page id.Page) ([]models.Entry, int, error) {
	entries, total, err := r.store.ListAll(ctx, page)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load activities")
	}
	return entries, total, nil
}
