package patient

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means no live row matched the normalized identifier.
	ErrNotFound = errors.New("patient not found")
	// ErrStoreUnavailable means the backing workbook could not be opened.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrMissingID rejects writes without an identifier.
	ErrMissingID = errors.New("patient id is required")
)

// Flag identifies one of the notification status columns.
type Flag int

const (
	FlagEmailed Flag = iota
	FlagWhatsApp
)

// Repository is the record store adapter. List and Get open the store
// read-only and may run concurrently with a writer; Upsert, Delete and
// SetFlag serialize on a single exclusive writer.
type Repository interface {
	List(ctx context.Context) ([]Summary, error)
	Get(ctx context.Context, id string) (*Patient, error)
	Upsert(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id string) error
	SetFlag(ctx context.Context, id string, flag Flag, value string) error
}
