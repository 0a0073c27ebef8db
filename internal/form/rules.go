// Package form implements the single create/edit session over the facility
// registry: draft state, dataset attachment, field validation, and atomic
// commit or discard.
package form

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"flexdetect/pkg/domain"
)

// FieldRule validates one aspect of a draft. Rules are evaluated
// independently so every failing field is reported, not just the first.
type FieldRule interface {
	Name() string
	Evaluate(fields domain.FacilityFields) domain.Result
}

// Validator aggregates the field rules applied before commit.
type Validator struct {
	rules []FieldRule
}

// NewValidator constructs a validator with the default rule set.
func NewValidator() *Validator {
	return &Validator{rules: []FieldRule{
		requiredFieldsRule{},
		facilityTypeRule{},
		sizeNonNegativeRule{},
		floorsPositiveRule{},
		emailSyntaxRule{},
	}}
}

// Register appends an additional rule to the validator.
func (v *Validator) Register(rule FieldRule) {
	v.rules = append(v.rules, rule)
}

// Validate evaluates all rules and merges their violations.
func (v *Validator) Validate(fields domain.FacilityFields) domain.Result {
	var combined domain.Result
	for _, rule := range v.rules {
		combined.Merge(rule.Evaluate(fields))
	}
	return combined
}

// requiredFieldsRule rejects empty values for every mandatory field.
type requiredFieldsRule struct{}

func (requiredFieldsRule) Name() string { return "required" }

func (r requiredFieldsRule) Evaluate(fields domain.FacilityFields) domain.Result {
	var res domain.Result
	checks := []struct {
		field string
		value string
	}{
		{"name", fields.Name},
		{"address", fields.Address},
		{"gps_lat", fields.GPSLat},
		{"gps_lng", fields.GPSLng},
		{"type", string(fields.Type)},
		{"size_sqm", fields.SizeSqm},
		{"floors", fields.Floors},
		{"contact_name", fields.ContactName},
		{"contact_phone", fields.ContactPhone},
		{"contact_email", fields.ContactEmail},
	}
	for _, check := range checks {
		if strings.TrimSpace(check.value) == "" {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:    r.Name(),
				Field:   check.field,
				Message: fmt.Sprintf("%s is required", check.field),
			})
		}
	}
	return res
}

// facilityTypeRule restricts the type to the enumerated set. Empty values are
// covered by the required rule.
type facilityTypeRule struct{}

func (facilityTypeRule) Name() string { return "facility_type" }

func (r facilityTypeRule) Evaluate(fields domain.FacilityFields) domain.Result {
	var res domain.Result
	if fields.Type == "" || domain.ValidFacilityType(fields.Type) {
		return res
	}
	options := make([]string, 0, len(domain.FacilityTypes()))
	for _, t := range domain.FacilityTypes() {
		options = append(options, string(t))
	}
	res.Violations = append(res.Violations, domain.Violation{
		Rule:    r.Name(),
		Field:   "type",
		Message: fmt.Sprintf("type must be one of %s", strings.Join(options, ", ")),
	})
	return res
}

// sizeNonNegativeRule requires size_sqm to parse as a number >= 0.
type sizeNonNegativeRule struct{}

func (sizeNonNegativeRule) Name() string { return "size_non_negative" }

func (r sizeNonNegativeRule) Evaluate(fields domain.FacilityFields) domain.Result {
	var res domain.Result
	raw := strings.TrimSpace(fields.SizeSqm)
	if raw == "" {
		return res
	}
	size, err := strconv.ParseFloat(raw, 64)
	if err != nil || size < 0 {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:    r.Name(),
			Field:   "size_sqm",
			Message: "size_sqm must be a number greater than or equal to 0",
		})
	}
	return res
}

// floorsPositiveRule requires floors to parse as an integer >= 1.
type floorsPositiveRule struct{}

func (floorsPositiveRule) Name() string { return "floors_positive" }

func (r floorsPositiveRule) Evaluate(fields domain.FacilityFields) domain.Result {
	var res domain.Result
	raw := strings.TrimSpace(fields.Floors)
	if raw == "" {
		return res
	}
	floors, err := strconv.Atoi(raw)
	if err != nil || floors < 1 {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:    r.Name(),
			Field:   "floors",
			Message: "floors must be an integer greater than or equal to 1",
		})
	}
	return res
}

// emailPattern requires a local part, an @, and a domain containing a dot.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// emailSyntaxRule validates contact_email syntax.
type emailSyntaxRule struct{}

func (emailSyntaxRule) Name() string { return "email_syntax" }

func (r emailSyntaxRule) Evaluate(fields domain.FacilityFields) domain.Result {
	var res domain.Result
	raw := strings.TrimSpace(fields.ContactEmail)
	if raw == "" {
		return res
	}
	if !emailPattern.MatchString(raw) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:    r.Name(),
			Field:   "contact_email",
			Message: "contact_email must be a valid email address",
		})
	}
	return res
}
