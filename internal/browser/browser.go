// Package browser projects the facility registry into read-only display
// cards for the dashboard. It renders what the registry currently holds; no
// filtering, sorting, or pagination.
package browser

import (
	"encoding/json"
	"fmt"

	"flexdetect/internal/form"
	"flexdetect/internal/registry"
	"flexdetect/pkg/domain"
)

// Card is the display projection of one facility record.
type Card struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Address     string `json:"address"`
	GPS         string `json:"gps"`
	Type        string `json:"type"`
	SizeSummary string `json:"size_summary"`
	Contact     string `json:"contact"`
	// MLDataPreview holds the attached dataset re-encoded as indented JSON,
	// empty when no dataset is attached.
	MLDataPreview string `json:"ml_data_preview,omitempty"`
}

// Browser is the read-only presentation surface over the registry, plus the
// single "edit this record" action handing off to the form manager.
type Browser struct {
	svc   *registry.Service
	forms *form.Manager
}

// New constructs a browser over the registry service and form manager.
func New(svc *registry.Service, forms *form.Manager) *Browser {
	return &Browser{svc: svc, forms: forms}
}

// Cards returns a display card for every registry record, in insertion order.
func (b *Browser) Cards() []Card {
	facilities := b.svc.ListFacilities()
	out := make([]Card, 0, len(facilities))
	for _, f := range facilities {
		out = append(out, renderCard(f))
	}
	return out
}

// Edit opens an edit form session seeded from the identified record.
func (b *Browser) Edit(id string) (*form.Session, error) {
	return b.forms.OpenEdit(id)
}

func renderCard(f domain.Facility) Card {
	card := Card{
		ID:          f.ID,
		Title:       f.Name,
		Address:     f.Address,
		GPS:         fmt.Sprintf("%s, %s", f.GPSLat, f.GPSLng),
		Type:        string(f.Type),
		SizeSummary: fmt.Sprintf("%s sqm, %s floors", f.SizeSqm, f.Floors),
		Contact:     fmt.Sprintf("%s (%s, %s)", f.ContactName, f.ContactPhone, f.ContactEmail),
	}
	if f.MLData != nil {
		if preview, err := json.MarshalIndent(f.MLData, "", "  "); err == nil {
			card.MLDataPreview = string(preview)
		}
	}
	return card
}
