package form_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"flexdetect/internal/form"
	"flexdetect/internal/ingest"
	"flexdetect/internal/persistence/memory"
	"flexdetect/internal/registry"
	"flexdetect/pkg/domain"
)

func validFields() domain.FacilityFields {
	return domain.FacilityFields{
		Name:         "HQ",
		Address:      "1 Main St",
		GPSLat:       "45.0",
		GPSLng:       "15.0",
		Type:         domain.FacilityOffice,
		SizeSqm:      "500",
		Floors:       "3",
		ContactName:  "A B",
		ContactPhone: "123",
		ContactEmail: "a@b.com",
	}
}

func newManager(t *testing.T, opts ...form.Option) (*form.Manager, *registry.Service) {
	t.Helper()
	svc := registry.NewService(memory.NewStore())
	return form.NewManager(svc, ingest.NewIngestor(), opts...), svc
}

func datasetSource(doc string) ingest.BytesSource {
	return ingest.BytesSource{Label: "dataset.json", Data: []byte(doc)}
}

func TestCreateCommitInsertsFacility(t *testing.T) {
	mgr, svc := newManager(t)
	ctx := context.Background()

	s, err := mgr.OpenCreate()
	if err != nil {
		t.Fatalf("open create: %v", err)
	}
	if s.Fields().Type != domain.FacilityTypes()[0] {
		t.Fatalf("expected default type, got %s", s.Fields().Type)
	}
	if err := s.SetFields(validFields()); err != nil {
		t.Fatalf("set fields: %v", err)
	}
	if err := s.AttachDataset(ctx, datasetSource(`{"model":"flex-v2"}`)); err != nil {
		t.Fatalf("attach dataset: %v", err)
	}

	committed, err := s.Commit(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if committed.ID == "" {
		t.Fatalf("expected assigned id")
	}
	if mgr.Active() != nil {
		t.Fatalf("session must close after commit")
	}

	stored, ok := svc.GetFacility(committed.ID)
	if !ok {
		t.Fatalf("facility missing from registry")
	}
	if !domain.EqualJSONValue(stored.MLData, map[string]any{"model": "flex-v2"}) {
		t.Fatalf("dataset not merged into record: %#v", stored.MLData)
	}

	if _, err := s.Commit(ctx); !errors.Is(err, form.ErrSessionClosed) {
		t.Fatalf("second commit must fail closed, got %v", err)
	}
	if got := len(svc.ListFacilities()); got != 1 {
		t.Fatalf("second commit must not insert, got %d records", got)
	}
}

func TestEditCommitReplacesFields(t *testing.T) {
	mgr, svc := newManager(t)
	ctx := context.Background()

	created, err := svc.CreateFacility(ctx, validFields())
	if err != nil {
		t.Fatalf("seed facility: %v", err)
	}

	s, err := mgr.OpenEdit(created.ID)
	if err != nil {
		t.Fatalf("open edit: %v", err)
	}
	draft := s.Fields()
	if draft.Name != "HQ" {
		t.Fatalf("draft not seeded from record: %+v", draft)
	}

	draft.Name = "HQ West"
	draft.Floors = "5"
	if err := s.SetFields(draft); err != nil {
		t.Fatalf("set fields: %v", err)
	}
	committed, err := s.Commit(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if committed.ID != created.ID {
		t.Fatalf("edit changed identity: %s", committed.ID)
	}

	stored, _ := svc.GetFacility(created.ID)
	if stored.Name != "HQ West" || stored.Floors != "5" {
		t.Fatalf("edit not applied: %+v", stored.FacilityFields)
	}
	if got := len(svc.ListFacilities()); got != 1 {
		t.Fatalf("edit must not insert, got %d records", got)
	}
}

func TestEditKeepsExistingDatasetWithoutReattach(t *testing.T) {
	mgr, svc := newManager(t)
	ctx := context.Background()

	fields := validFields()
	fields.MLData = map[string]any{"model": "flex-v1"}
	created, err := svc.CreateFacility(ctx, fields)
	if err != nil {
		t.Fatalf("seed facility: %v", err)
	}

	s, err := mgr.OpenEdit(created.ID)
	if err != nil {
		t.Fatalf("open edit: %v", err)
	}
	if !domain.EqualJSONValue(s.Dataset(), map[string]any{"model": "flex-v1"}) {
		t.Fatalf("dataset not seeded: %#v", s.Dataset())
	}
	if _, err := s.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	stored, _ := svc.GetFacility(created.ID)
	if !domain.EqualJSONValue(stored.MLData, map[string]any{"model": "flex-v1"}) {
		t.Fatalf("dataset lost on edit commit: %#v", stored.MLData)
	}
}

func TestCommitWithViolationsKeepsSessionOpen(t *testing.T) {
	mgr, svc := newManager(t)
	ctx := context.Background()

	s, err := mgr.OpenCreate()
	if err != nil {
		t.Fatalf("open create: %v", err)
	}
	fields := validFields()
	fields.Name = ""
	fields.Floors = "0"
	if err := s.SetFields(fields); err != nil {
		t.Fatalf("set fields: %v", err)
	}

	_, err = s.Commit(ctx)
	var vErr domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if got := len(svc.ListFacilities()); got != 0 {
		t.Fatalf("registry mutated despite violations: %d records", got)
	}
	if mgr.Active() != s {
		t.Fatalf("session must stay open after validation failure")
	}

	failing := map[string]bool{}
	for _, f := range s.Violations().Fields() {
		failing[f] = true
	}
	if !failing["name"] || !failing["floors"] {
		t.Fatalf("expected both failing fields reported: %v", s.Violations().Fields())
	}

	// Fixing the draft clears the way for a successful commit.
	if err := s.SetFields(validFields()); err != nil {
		t.Fatalf("set fields: %v", err)
	}
	if _, err := s.Commit(ctx); err != nil {
		t.Fatalf("commit after fix: %v", err)
	}
	if !s.Violations().OK() {
		t.Fatalf("violations must clear on success: %+v", s.Violations())
	}
}

func TestFailedAttachKeepsPriorDataset(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	s, err := mgr.OpenCreate()
	if err != nil {
		t.Fatalf("open create: %v", err)
	}
	if err := s.AttachDataset(ctx, datasetSource(`{"model":"flex-v2"}`)); err != nil {
		t.Fatalf("attach dataset: %v", err)
	}

	err = s.AttachDataset(ctx, datasetSource(`{broken`))
	var invalid *ingest.InvalidJSONError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidJSONError, got %v", err)
	}
	if !domain.EqualJSONValue(s.Dataset(), map[string]any{"model": "flex-v2"}) {
		t.Fatalf("failed attach clobbered prior dataset: %#v", s.Dataset())
	}
}

func TestCancelDiscardsDraft(t *testing.T) {
	mgr, svc := newManager(t)
	ctx := context.Background()

	s, err := mgr.OpenCreate()
	if err != nil {
		t.Fatalf("open create: %v", err)
	}
	if err := s.SetFields(validFields()); err != nil {
		t.Fatalf("set fields: %v", err)
	}
	if err := s.AttachDataset(ctx, datasetSource(`[1,2]`)); err != nil {
		t.Fatalf("attach dataset: %v", err)
	}

	if err := s.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if mgr.Active() != nil {
		t.Fatalf("session must close after cancel")
	}
	if got := len(svc.ListFacilities()); got != 0 {
		t.Fatalf("cancel mutated registry: %d records", got)
	}
	if err := s.Cancel(); !errors.Is(err, form.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on double cancel, got %v", err)
	}
}

func TestSingleSessionAtATime(t *testing.T) {
	mgr, _ := newManager(t)

	s, err := mgr.OpenCreate()
	if err != nil {
		t.Fatalf("open create: %v", err)
	}
	if _, err := mgr.OpenCreate(); !errors.Is(err, form.ErrSessionOpen) {
		t.Fatalf("expected ErrSessionOpen, got %v", err)
	}
	if err := s.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := mgr.OpenCreate(); err != nil {
		t.Fatalf("open after cancel: %v", err)
	}
}

func TestStaleIngestResultIsDiscarded(t *testing.T) {
	mgr, svc := newManager(t)
	ctx := context.Background()

	s, err := mgr.OpenCreate()
	if err != nil {
		t.Fatalf("open create: %v", err)
	}
	if err := s.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// The read completes after teardown; its result must not land anywhere.
	if err := s.AttachDataset(ctx, datasetSource(`{"late":true}`)); !errors.Is(err, form.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}

	next, err := mgr.OpenCreate()
	if err != nil {
		t.Fatalf("open next session: %v", err)
	}
	if next.Dataset() != nil {
		t.Fatalf("stale result leaked into new session: %#v", next.Dataset())
	}
	if err := next.SetFields(validFields()); err != nil {
		t.Fatalf("set fields: %v", err)
	}
	committed, err := next.Commit(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	stored, _ := svc.GetFacility(committed.ID)
	if stored.MLData != nil {
		t.Fatalf("stale dataset reached registry: %#v", stored.MLData)
	}
}

func TestEditCommitFailsHardWhenRecordVanished(t *testing.T) {
	mgr, svc := newManager(t)
	ctx := context.Background()

	created, err := svc.CreateFacility(ctx, validFields())
	if err != nil {
		t.Fatalf("seed facility: %v", err)
	}
	s, err := mgr.OpenEdit(created.ID)
	if err != nil {
		t.Fatalf("open edit: %v", err)
	}
	if err := svc.DeleteFacility(ctx, created.ID); err != nil {
		t.Fatalf("delete behind session: %v", err)
	}

	_, err = s.Commit(ctx)
	var notFound domain.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected wrapped NotFoundError, got %v", err)
	}
}

func TestOpenEditMissingFacility(t *testing.T) {
	mgr, _ := newManager(t)
	_, err := mgr.OpenEdit("absent")
	var notFound domain.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSetFieldsCannotSmuggleDataset(t *testing.T) {
	mgr, _ := newManager(t)

	s, err := mgr.OpenCreate()
	if err != nil {
		t.Fatalf("open create: %v", err)
	}
	fields := validFields()
	fields.MLData = map[string]any{"smuggled": true}
	if err := s.SetFields(fields); err != nil {
		t.Fatalf("set fields: %v", err)
	}
	if s.Dataset() != nil {
		t.Fatalf("dataset slot must only change via attach: %#v", s.Dataset())
	}
}

type captureArchive struct {
	mu   sync.Mutex
	docs map[string][]byte
	err  error
}

func (a *captureArchive) Archive(_ context.Context, facilityID string, doc []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	if a.docs == nil {
		a.docs = make(map[string][]byte)
	}
	a.docs[facilityID] = append([]byte(nil), doc...)
	return nil
}

func TestCommitArchivesDatasetDocument(t *testing.T) {
	archive := &captureArchive{}
	mgr, _ := newManager(t, form.WithDatasetArchive(archive))
	ctx := context.Background()

	s, err := mgr.OpenCreate()
	if err != nil {
		t.Fatalf("open create: %v", err)
	}
	if err := s.SetFields(validFields()); err != nil {
		t.Fatalf("set fields: %v", err)
	}
	if err := s.AttachDataset(ctx, datasetSource(`{"model":"flex-v2"}`)); err != nil {
		t.Fatalf("attach dataset: %v", err)
	}
	committed, err := s.Commit(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	doc, ok := archive.docs[committed.ID]
	if !ok {
		t.Fatalf("dataset not archived")
	}
	if string(doc) != `{"model":"flex-v2"}` {
		t.Fatalf("unexpected archived document: %s", doc)
	}
}

func TestArchiveFailureDoesNotBlockCommit(t *testing.T) {
	archive := &captureArchive{err: errors.New("archive down")}
	var reported error
	mgr, svc := newManager(t,
		form.WithDatasetArchive(archive),
		form.WithArchiveErrorHandler(func(err error) { reported = err }),
	)
	ctx := context.Background()

	s, err := mgr.OpenCreate()
	if err != nil {
		t.Fatalf("open create: %v", err)
	}
	if err := s.SetFields(validFields()); err != nil {
		t.Fatalf("set fields: %v", err)
	}
	if err := s.AttachDataset(ctx, datasetSource(`{"a":1}`)); err != nil {
		t.Fatalf("attach dataset: %v", err)
	}
	committed, err := s.Commit(ctx)
	if err != nil {
		t.Fatalf("commit must succeed despite archive failure: %v", err)
	}
	if _, ok := svc.GetFacility(committed.ID); !ok {
		t.Fatalf("facility missing after commit")
	}
	if reported == nil {
		t.Fatalf("archive failure not reported")
	}
}
