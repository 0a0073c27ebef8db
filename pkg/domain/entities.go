// Package domain defines the core persistent entities, value types, and
// validation primitives used by flexdetect.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityFacility identifies a facility record.
	EntityFacility EntityType = "facility"
)

// FacilityType enumerates the supported facility classifications.
type FacilityType string

// Canonical facility types offered by the registration form.
const (
	FacilityOffice     FacilityType = "Office"
	FacilityRetail     FacilityType = "Retail"
	FacilityIndustrial FacilityType = "Industrial"
	FacilityMixedUse   FacilityType = "Mixed-use"
)

// FacilityTypes lists the enumerated facility types in display order.
// The first entry is the default for newly opened create sessions.
func FacilityTypes() []FacilityType {
	return []FacilityType{FacilityOffice, FacilityRetail, FacilityIndustrial, FacilityMixedUse}
}

// ValidFacilityType reports whether t is one of the enumerated facility types.
func ValidFacilityType(t FacilityType) bool {
	for _, candidate := range FacilityTypes() {
		if candidate == t {
			return true
		}
	}
	return false
}

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FacilityFields carries the mutable, non-identity attributes of a facility.
// It is the shape of a form draft: all values arrive as user-entered text
// except Type and the optional parsed dataset.
type FacilityFields struct {
	Name         string       `json:"name"`
	Address      string       `json:"address"`
	GPSLat       string       `json:"gps_lat"`
	GPSLng       string       `json:"gps_lng"`
	Type         FacilityType `json:"type"`
	SizeSqm      string       `json:"size_sqm"`
	Floors       string       `json:"floors"`
	ContactName  string       `json:"contact_name"`
	ContactPhone string       `json:"contact_phone"`
	ContactEmail string       `json:"contact_email"`
	// MLData holds an optional attached dataset: nil, or a value that was
	// successfully decoded from JSON text. No schema is imposed.
	MLData any `json:"ml_data_json,omitempty"`
}

// Clone returns a deep copy of the fields including the attached dataset.
func (f FacilityFields) Clone() FacilityFields {
	cp := f
	cp.MLData = CloneJSONValue(f.MLData)
	return cp
}

// Facility represents one physical site tracked by the registry.
type Facility struct {
	Base
	FacilityFields
}

// CloneFacility returns a deep copy of the facility record.
func CloneFacility(f Facility) Facility {
	cp := f
	cp.FacilityFields = f.FacilityFields.Clone()
	return cp
}

// Action describes the kind of mutation captured in a Change record.
type Action string

// Mutation kinds recorded against the registry.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change captures a single mutation applied within a registry transaction.
type Change struct {
	Entity EntityType `json:"entity"`
	Action Action     `json:"action"`
	Before any        `json:"before,omitempty"`
	After  any        `json:"after,omitempty"`
}
