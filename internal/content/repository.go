package content

import (
	"context"
	"io"
)

// Sort selects the ordering for FindSortedLimited.
type Sort struct {
	Field string
	Desc  bool
}

// SortByDateDesc orders newest first.
var SortByDateDesc = Sort{Field: "date", Desc: true}

// Repository is the persistence contract for a single entity kind.
type Repository[T any] interface {
	// Create assigns a fresh id to rec and persists it.
	Create(ctx context.Context, rec *T) error
	// FindByID reports absence with ok == false, never with an error.
	FindByID(ctx context.Context, id string) (rec *T, ok bool, err error)
	FindAll(ctx context.Context) ([]*T, error)
	// FindSortedLimited returns at most limit records ordered by s.
	// Unknown sort fields are rejected with ErrValidation.
	FindSortedLimited(ctx context.Context, s Sort, limit int) ([]*T, error)
	// Save overwrites an existing record by id, or fails with ErrNotFound.
	Save(ctx context.Context, rec *T) error
}

// AlbumRepository adds an atomic append-to-photos primitive.
type AlbumRepository interface {
	Repository[Album]
	// AppendPhoto appends ref to the album's photos in a single atomic step
	// and returns the updated album. Fails with ErrNotFound if id is absent.
	AppendPhoto(ctx context.Context, id, ref string) (*Album, error)
}

// BlobStorage persists uploaded bytes and returns a stable reference path.
type BlobStorage interface {
	Store(ctx context.Context, field, filename string, body io.Reader) (string, error)
	Remove(ctx context.Context, ref string) error
}

// Scheduler hands persisted notifications off for delivery.
type Scheduler interface {
	Schedule(ctx context.Context, n *Notification) error
}
