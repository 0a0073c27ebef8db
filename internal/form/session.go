package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"flexdetect/internal/ingest"
	"flexdetect/internal/registry"
	"flexdetect/pkg/domain"
)

// Mode tags the session's commit path.
type Mode string

// Session modes. Edit sessions additionally carry the id they target.
const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// Session lifecycle errors.
var (
	// ErrSessionOpen is returned when opening a session while one is live.
	ErrSessionOpen = errors.New("a form session is already open")
	// ErrSessionClosed is returned when operating on a torn-down session.
	ErrSessionClosed = errors.New("form session is closed")
)

// DatasetArchive receives the raw dataset document after a successful commit.
type DatasetArchive interface {
	Archive(ctx context.Context, facilityID string, doc []byte) error
}

// Manager owns the single live form session. At most one session exists at a
// time; a second open while one is live fails with ErrSessionOpen.
type Manager struct {
	mu             sync.Mutex
	svc            *registry.Service
	ingestor       *ingest.Ingestor
	validator      *Validator
	archive        DatasetArchive
	onArchiveError func(error)
	active         *Session
}

// Option configures optional manager collaborators.
type Option func(*Manager)

// WithDatasetArchive stores committed dataset documents in the given archive.
// Archival is best effort and never blocks a commit.
func WithDatasetArchive(archive DatasetArchive) Option {
	return func(m *Manager) { m.archive = archive }
}

// WithArchiveErrorHandler receives archival failures, which are otherwise dropped.
func WithArchiveErrorHandler(fn func(error)) Option {
	return func(m *Manager) { m.onArchiveError = fn }
}

// NewManager constructs a form manager over the registry service.
func NewManager(svc *registry.Service, ingestor *ingest.Ingestor, opts ...Option) *Manager {
	m := &Manager{
		svc:       svc,
		ingestor:  ingestor,
		validator: NewValidator(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Session is the transient create/edit context. It owns draft copies only and
// never aliases a live registry record: edits are copy-on-open and
// merge-on-commit.
type Session struct {
	mgr        *Manager
	mode       Mode
	targetID   string
	fields     domain.FacilityFields
	dataset    any
	datasetRaw []byte
	violations domain.Result
	closed     bool
}

// OpenCreate transitions Closed -> Open(Create). The draft starts with the
// default facility type and every other field empty.
func (m *Manager) OpenCreate() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return nil, ErrSessionOpen
	}
	s := &Session{
		mgr:    m,
		mode:   ModeCreate,
		fields: domain.FacilityFields{Type: domain.FacilityTypes()[0]},
	}
	m.active = s
	return s, nil
}

// OpenEdit transitions Closed -> Open(Edit(id)), seeding the draft with a deep
// copy of the registry record's current values.
func (m *Manager) OpenEdit(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return nil, ErrSessionOpen
	}
	record, ok := m.svc.GetFacility(id)
	if !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityFacility, ID: id}
	}
	fields := record.FacilityFields.Clone()
	dataset := fields.MLData
	fields.MLData = nil
	s := &Session{
		mgr:      m,
		mode:     ModeEdit,
		targetID: record.ID,
		fields:   fields,
		dataset:  dataset,
	}
	m.active = s
	return s, nil
}

// Active returns the live session, or nil when the form is closed.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Mode returns the session's commit path tag.
func (s *Session) Mode() Mode { return s.mode }

// TargetID returns the edited record's id, empty in create mode.
func (s *Session) TargetID() string { return s.targetID }

// Fields returns a deep copy of the current draft fields. The attached
// dataset is exposed separately via Dataset.
func (s *Session) Fields() domain.FacilityFields {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	return s.fields.Clone()
}

// SetFields replaces the draft fields. The dataset slot is managed only by
// AttachDataset, so any MLData carried on fields is ignored.
func (s *Session) SetFields(fields domain.FacilityFields) error {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	next := fields.Clone()
	next.MLData = nil
	s.fields = next
	return nil
}

// Dataset returns a deep copy of the draft dataset, or nil when absent.
func (s *Session) Dataset() any {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	return domain.CloneJSONValue(s.dataset)
}

// Violations returns the validation result of the most recent commit attempt.
func (s *Session) Violations() domain.Result {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	return domain.Result{Violations: append([]domain.Violation(nil), s.violations.Violations...)}
}

// AttachDataset reads and parses the source as JSON, then stores the result in
// the draft dataset slot. On any failure the previously attached dataset is
// left untouched (last-valid-wins). The read happens outside the session lock;
// a result arriving after the session was torn down is discarded.
func (s *Session) AttachDataset(ctx context.Context, src ingest.Source) error {
	result, err := s.mgr.ingestor.Ingest(ctx, src)

	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	if s.closed {
		// The session this read was started for no longer exists; the
		// result must never be applied to a later-opened session.
		return ErrSessionClosed
	}
	if err != nil {
		return err
	}
	s.dataset = result.Value
	s.datasetRaw = result.Raw
	return nil
}

// Cancel transitions Open -> Closed, discarding the draft entirely. The
// registry is unaffected.
func (s *Session) Cancel() error {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.teardownLocked()
	return nil
}

// Commit validates the draft and, on success, merges it into the registry:
// insert in create mode, full replace at the target id in edit mode. On
// validation failure the session stays open with the violations recorded and
// the registry untouched. A NotFoundError on update indicates the edited
// record vanished and is surfaced as a hard failure.
func (s *Session) Commit(ctx context.Context) (domain.Facility, error) {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	if s.closed {
		return domain.Facility{}, ErrSessionClosed
	}

	res := s.mgr.validator.Validate(s.fields)
	if !res.OK() {
		s.violations = res
		return domain.Facility{}, domain.ValidationError{Result: res}
	}
	s.violations = domain.Result{}

	fields := s.fields.Clone()
	fields.MLData = domain.CloneJSONValue(s.dataset)

	var committed domain.Facility
	var err error
	switch s.mode {
	case ModeEdit:
		committed, err = s.mgr.svc.UpdateFacility(ctx, s.targetID, fields)
		var notFound domain.NotFoundError
		if errors.As(err, &notFound) {
			return domain.Facility{}, fmt.Errorf("edited facility vanished from registry: %w", err)
		}
	default:
		committed, err = s.mgr.svc.CreateFacility(ctx, fields)
	}
	if err != nil {
		return domain.Facility{}, err
	}

	s.archiveLocked(ctx, committed.ID)
	s.teardownLocked()
	return committed, nil
}

// archiveLocked writes the raw dataset document to the configured archive.
// Failures never block the commit; the registry record is canonical.
func (s *Session) archiveLocked(ctx context.Context, facilityID string) {
	if s.mgr.archive == nil || s.dataset == nil {
		return
	}
	doc := s.datasetRaw
	if doc == nil {
		// Edit sessions seeded from a stored record have no raw document;
		// re-encode the parsed value.
		encoded, err := json.Marshal(s.dataset)
		if err != nil {
			if s.mgr.onArchiveError != nil {
				s.mgr.onArchiveError(err)
			}
			return
		}
		doc = encoded
	}
	if err := s.mgr.archive.Archive(ctx, facilityID, doc); err != nil {
		if s.mgr.onArchiveError != nil {
			s.mgr.onArchiveError(err)
		}
	}
}

func (s *Session) teardownLocked() {
	s.closed = true
	s.fields = domain.FacilityFields{}
	s.dataset = nil
	s.datasetRaw = nil
	if s.mgr.active == s {
		s.mgr.active = nil
	}
}
