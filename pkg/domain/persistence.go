package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	CreateFacility(Facility) (Facility, error)
	UpdateFacility(id string, mutator func(*Facility) error) (Facility, error)
	DeleteFacility(id string) error
	FindFacility(id string) (Facility, bool)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	ListFacilities() []Facility
	FindFacility(id string) (Facility, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) ([]Change, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetFacility(id string) (Facility, bool)
	ListFacilities() []Facility
}
