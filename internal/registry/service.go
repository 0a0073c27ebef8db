// Package registry exposes transactional facility operations over a
// persistent store, with pluggable metrics and audit recording.
package registry

import (
	"context"
	"time"

	"flexdetect/pkg/domain"
)

// MetricsRecorder observes the outcome and duration of registry operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// AuditStatus describes the terminal status of an audited operation.
type AuditStatus string

// Audit outcome statuses.
const (
	AuditSucceeded AuditStatus = "succeeded"
	AuditFailed    AuditStatus = "failed"
)

// AuditEntry captures one registry mutation for the audit trail.
type AuditEntry struct {
	Operation  string            `json:"operation"`
	Status     AuditStatus       `json:"status"`
	Entity     domain.EntityType `json:"entity"`
	EntityID   string            `json:"entity_id,omitempty"`
	Error      string            `json:"error,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// AuditRecorder records audit entries for registry mutations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// Service exposes higher-level transactional operations over the registry store.
type Service struct {
	store   domain.PersistentStore
	metrics MetricsRecorder
	audit   AuditRecorder
	nowFn   func() time.Time
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithMetricsRecorder attaches a metrics recorder to the service.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) { s.metrics = rec }
}

// WithAuditRecorder attaches an audit recorder to the service.
func WithAuditRecorder(rec AuditRecorder) Option {
	return func(s *Service) { s.audit = rec }
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

func (s *Service) observe(ctx context.Context, operation, entityID string, err error, started time.Time) {
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, time.Since(started))
	}
	if s.audit != nil {
		entry := AuditEntry{
			Operation:  operation,
			Status:     AuditSucceeded,
			Entity:     domain.EntityFacility,
			EntityID:   entityID,
			OccurredAt: s.nowFn(),
		}
		if err != nil {
			entry.Status = AuditFailed
			entry.Error = err.Error()
		}
		s.audit.Record(ctx, entry)
	}
}

// CreateFacility persists a new facility assembled from the given fields and
// returns it with its freshly assigned identity. No validation is performed
// here; the form session validates drafts before committing.
func (s *Service) CreateFacility(ctx context.Context, fields domain.FacilityFields) (domain.Facility, error) {
	started := time.Now()
	var created domain.Facility
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var txErr error
		created, txErr = tx.CreateFacility(domain.Facility{FacilityFields: fields.Clone()})
		return txErr
	})
	s.observe(ctx, "create_facility", created.ID, err, started)
	if err != nil {
		return domain.Facility{}, err
	}
	return created, nil
}

// UpdateFacility replaces all non-identity fields of the facility matching id
// in one atomic step. A missing id yields domain.NotFoundError.
func (s *Service) UpdateFacility(ctx context.Context, id string, fields domain.FacilityFields) (domain.Facility, error) {
	started := time.Now()
	var updated domain.Facility
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var txErr error
		updated, txErr = tx.UpdateFacility(id, func(f *domain.Facility) error {
			f.FacilityFields = fields.Clone()
			return nil
		})
		return txErr
	})
	s.observe(ctx, "update_facility", id, err, started)
	if err != nil {
		return domain.Facility{}, err
	}
	return updated, nil
}

// DeleteFacility removes the facility matching id atomically.
func (s *Service) DeleteFacility(ctx context.Context, id string) error {
	started := time.Now()
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteFacility(id)
	})
	s.observe(ctx, "delete_facility", id, err, started)
	return err
}

// GetFacility retrieves a facility by id from committed state.
func (s *Service) GetFacility(id string) (domain.Facility, bool) {
	return s.store.GetFacility(id)
}

// ListFacilities returns all facilities in insertion order.
func (s *Service) ListFacilities() []domain.Facility {
	return s.store.ListFacilities()
}
