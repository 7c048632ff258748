package activity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vaulttrail/internal/activity/metrics"
)

// Sink receives a copy of every created activity record. Delivery is
// best-effort: implementations must never block the logging call and the
// service ignores any failure to deliver.
type Sink interface {
	Publish(ctx context.Context, log Log)
}

// Service manages the open/closed lifecycle of individual activities. All
// mutations run a read-modify-write cycle over the single collection blob, so
// they serialize through one mutex; this is the single-writer discipline that
// keeps the ordering and retention invariants intact under concurrent callers.
type Service struct {
	store   LogStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	sink    Sink

	// now and newID are injectable for deterministic tests.
	now   func() time.Time
	newID func() string

	mu sync.Mutex // serializes all read-modify-write mutations
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSink attaches a downstream copy of created activities (e.g. the Kafka
// mirror). Nil sinks are ignored.
func WithSink(sink Sink) Option {
	return func(s *Service) { s.sink = sink }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func New(store LogStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("activity log store is required")
	}

	svc := &Service{
		store: store,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

// LogOption customizes a record at creation time. Everything it sets is
// immutable afterwards.
type LogOption func(*Log)

func WithStatus(status Status) LogOption {
	return func(l *Log) { l.Status = status }
}

func WithDetails(details map[string]any) LogOption {
	return func(l *Log) { l.Details = details }
}

func WithUserDID(did string) LogOption {
	return func(l *Log) { l.UserDID = did }
}

func WithSubSteps(steps []SubStep) LogOption {
	return func(l *Log) { l.SubSteps = steps }
}

func WithMetadata(meta *Metadata) LogOption {
	return func(l *Log) { l.Metadata = meta }
}

// LogActivity constructs a new record with a fresh id and current timestamp,
// prepends it to the collection (newest first), and writes back through the
// store, applying retention. This is the sole creation primitive. Storage
// failures propagate here, unlike the other mutations, because the caller
// needs the id and may choose to proceed without logging.
func (s *Service) LogActivity(ctx context.Context, typ Type, description string, opts ...LogOption) (string, error) {
	record := Log{
		ID:          s.newID(),
		Timestamp:   s.now().UnixMilli(),
		Type:        typ,
		Description: description,
		Status:      StatusSuccess,
	}
	for _, opt := range opts {
		opt(&record)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logs, err := s.store.Load(ctx)
	if err != nil {
		s.countStorageError()
		return "", fmt.Errorf("log activity: %w", err)
	}

	logs = append([]Log{record}, logs...)
	if err := s.store.Replace(ctx, logs); err != nil {
		s.countStorageError()
		return "", fmt.Errorf("log activity: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncrementActivitiesLogged(string(typ))
	}
	if s.sink != nil {
		s.sink.Publish(ctx, record)
	}

	s.logger.Debug("activity logged",
		"activity_id", record.ID,
		"type", record.Type,
		"status", record.Status,
	)
	return record.ID, nil
}

// StartActivity is a convenience for opening an activity with no sub-steps
// yet; checkpoints arrive later via AddSubStep.
func (s *Service) StartActivity(ctx context.Context, typ Type, description string, opts ...LogOption) (string, error) {
	return s.LogActivity(ctx, typ, description, opts...)
}

// SubStepOption customizes an appended sub-step.
type SubStepOption func(*SubStep)

func WithSubStepStatus(status SubStepStatus) SubStepOption {
	return func(st *SubStep) { st.Status = status }
}

func WithSubStepDetails(details map[string]any) SubStepOption {
	return func(st *SubStep) { st.Details = details }
}

// AddSubStep appends a checkpoint to an open activity. Best-effort telemetry:
// an unknown id is a silent no-op (the record may have been evicted by
// retention) and storage failures are logged, never returned, so observability
// cannot break the operation being observed.
func (s *Service) AddSubStep(ctx context.Context, id, description string, opts ...SubStepOption) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs, err := s.store.Load(ctx)
	if err != nil {
		s.countStorageError()
		s.logger.Warn("add sub-step: load failed", "activity_id", id, "error", err)
		return
	}

	idx := indexByID(logs, id)
	if idx < 0 {
		return
	}

	step := SubStep{
		Order:       len(logs[idx].SubSteps) + 1,
		Description: description,
		Timestamp:   s.now().UnixMilli(),
		Status:      SubStepCompleted,
	}
	for _, opt := range opts {
		opt(&step)
	}
	logs[idx].SubSteps = append(logs[idx].SubSteps, step)

	if err := s.store.Replace(ctx, logs); err != nil {
		s.countStorageError()
		s.logger.Warn("add sub-step: write failed", "activity_id", id, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.IncrementSubStepsRecorded()
	}
}

// CompleteActivity closes an activity: duration is computed from the record's
// original creation timestamp and, with the final status, written exactly
// once per call. Same best-effort semantics as AddSubStep.
func (s *Service) CompleteActivity(ctx context.Context, id string, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs, err := s.store.Load(ctx)
	if err != nil {
		s.countStorageError()
		s.logger.Warn("complete activity: load failed", "activity_id", id, "error", err)
		return
	}

	idx := indexByID(logs, id)
	if idx < 0 {
		return
	}

	duration := s.now().UnixMilli() - logs[idx].Timestamp
	logs[idx].Status = status
	logs[idx].Duration = &duration

	if err := s.store.Replace(ctx, logs); err != nil {
		s.countStorageError()
		s.logger.Warn("complete activity: write failed", "activity_id", id, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.IncrementActivitiesCompleted()
	}
}

// Load exposes the current collection for the read-only surfaces.
func (s *Service) Load(ctx context.Context) ([]Log, error) {
	return s.store.Load(ctx)
}

// Clear wipes the whole activity history.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		s.countStorageError()
		return fmt.Errorf("clear activities: %w", err)
	}
	return nil
}

func (s *Service) countStorageError() {
	if s.metrics != nil {
		s.metrics.IncrementStorageErrors()
	}
}

func indexByID(logs []Log, id string) int {
	for i := range logs {
		if logs[i].ID == id {
			return i
		}
	}
	return -1
}
