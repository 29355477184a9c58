package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/nidhogg/lovebook/internal/content"
)

// Repo is a mutex-guarded in-memory implementation of content.Repository.
// Stored records are copies; callers never share memory with the store.
type Repo[T any] struct {
	mu      sync.RWMutex
	records map[string]*T
	order   []string // insertion order, for stable FindAll output
	idOf    func(*T) *string
	clone   func(*T) *T
	sorts   map[string]func(a, b *T) int
}

// NewRepo creates an empty repository. idOf exposes the record's id field,
// clone returns a deep copy, and sorts maps sort field names to comparators
// in ascending order.
func NewRepo[T any](idOf func(*T) *string, clone func(*T) *T, sorts map[string]func(a, b *T) int) *Repo[T] {
	return &Repo[T]{
		records: make(map[string]*T),
		idOf:    idOf,
		clone:   clone,
		sorts:   sorts,
	}
}

// Create assigns a fresh UUID to rec and stores a copy.
func (r *Repo[T]) Create(ctx context.Context, rec *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New().String()
	for r.records[id] != nil {
		id = uuid.New().String()
	}
	*r.idOf(rec) = id
	r.records[id] = r.clone(rec)
	r.order = append(r.order, id)
	return nil
}

// FindByID returns a copy of the record, or ok == false when absent.
func (r *Repo[T]) FindByID(ctx context.Context, id string) (*T, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, false, nil
	}
	return r.clone(rec), true, nil
}

// FindAll returns copies of all records in insertion order.
func (r *Repo[T]) FindAll(ctx context.Context) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(), nil
}

// FindSortedLimited returns at most limit records ordered by s, with equal
// keys in creation order (newest first when descending). A non-positive
// limit returns every record.
func (r *Repo[T]) FindSortedLimited(ctx context.Context, s content.Sort, limit int) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmp, ok := r.sorts[s.Field]
	if !ok {
		return nil, fmt.Errorf("sort field %q: %w", s.Field, content.ErrValidation)
	}

	r.mu.RLock()
	out := r.snapshot()
	r.mu.RUnlock()

	// Ties keep creation order in the requested direction.
	if s.Desc {
		slices.Reverse(out)
	}
	slices.SortStableFunc(out, func(a, b *T) int {
		if s.Desc {
			return cmp(b, a)
		}
		return cmp(a, b)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Save overwrites the stored record with a copy of rec.
func (r *Repo[T]) Save(ctx context.Context, rec *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := *r.idOf(rec)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return fmt.Errorf("save %s: %w", id, content.ErrNotFound)
	}
	r.records[id] = r.clone(rec)
	return nil
}

// update applies fn to the stored record under the write lock and returns
// a copy of the result.
func (r *Repo[T]) update(ctx context.Context, id string, fn func(*T)) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("update %s: %w", id, content.ErrNotFound)
	}
	fn(rec)
	return r.clone(rec), nil
}

// snapshot must be called with the lock held.
func (r *Repo[T]) snapshot() []*T {
	out := make([]*T, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.clone(r.records[id]))
	}
	return out
}
