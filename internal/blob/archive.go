package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// DatasetArchive stores the raw JSON document of each committed dataset,
// keyed by facility id. The registry record stays canonical; the archive is
// a byte-exact copy of the uploaded file for later retrieval.
type DatasetArchive struct {
	store Store
}

// NewDatasetArchive wraps a blob store as a dataset archive.
func NewDatasetArchive(store Store) *DatasetArchive {
	return &DatasetArchive{store: store}
}

func archiveKey(facilityID string) string {
	return fmt.Sprintf("facilities/%s/mldata.json", facilityID)
}

// Archive stores doc as the current dataset document for the facility,
// replacing any previous version.
func (a *DatasetArchive) Archive(ctx context.Context, facilityID string, doc []byte) error {
	if facilityID == "" {
		return fmt.Errorf("facility id required")
	}
	_, err := a.store.Put(ctx, archiveKey(facilityID), bytes.NewReader(doc), PutOptions{ContentType: "application/json"})
	return err
}

// Load returns the archived dataset document for the facility.
func (a *DatasetArchive) Load(ctx context.Context, facilityID string) ([]byte, error) {
	_, rc, err := a.store.Get(ctx, archiveKey(facilityID))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}
