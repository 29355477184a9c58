package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nidhogg/lovebook/internal/content"
)

// PostgreSQL keeps microseconds; records are trimmed to that precision on
// write so a read returns exactly what was stored.
func normTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func normOptional(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := normTime(*t)
	return &n
}

// Milestones returns the milestone repository.
func (s *Store) Milestones() content.Repository[content.Milestone] {
	return &table[content.Milestone]{
		db:      s.db,
		name:    "milestones",
		columns: []string{"id", "title", "date", "description"},
		sorts:   map[string]string{"date": "date", "title": "title"},
		idOf:    func(m *content.Milestone) *string { return &m.ID },
		values: func(m *content.Milestone) []any {
			return []any{m.ID, m.Title, m.Date, m.Description}
		},
		scan: func(row scanner, m *content.Milestone) error {
			if err := row.Scan(&m.ID, &m.Title, &m.Date, &m.Description); err != nil {
				return err
			}
			m.Date = normOptional(m.Date)
			return nil
		},
		prepare: func(m *content.Milestone) { m.Date = normOptional(m.Date) },
	}
}

// Notifications returns the notification repository.
func (s *Store) Notifications() content.Repository[content.Notification] {
	return &table[content.Notification]{
		db:      s.db,
		name:    "notifications",
		columns: []string{"id", "message", "event_date"},
		sorts:   map[string]string{"eventDate": "event_date"},
		idOf:    func(n *content.Notification) *string { return &n.ID },
		values: func(n *content.Notification) []any {
			return []any{n.ID, n.Message, n.EventDate}
		},
		scan: func(row scanner, n *content.Notification) error {
			if err := row.Scan(&n.ID, &n.Message, &n.EventDate); err != nil {
				return err
			}
			n.EventDate = normOptional(n.EventDate)
			return nil
		},
		prepare: func(n *content.Notification) { n.EventDate = normOptional(n.EventDate) },
	}
}

// Memories returns the memory repository.
func (s *Store) Memories() content.Repository[content.Memory] {
	return &table[content.Memory]{
		db:      s.db,
		name:    "memories",
		columns: []string{"id", "content", "date"},
		sorts:   map[string]string{"date": "date"},
		idOf:    func(m *content.Memory) *string { return &m.ID },
		values: func(m *content.Memory) []any {
			return []any{m.ID, m.Content, m.Date}
		},
		scan: func(row scanner, m *content.Memory) error {
			if err := row.Scan(&m.ID, &m.Content, &m.Date); err != nil {
				return err
			}
			m.Date = normTime(m.Date)
			return nil
		},
		prepare: func(m *content.Memory) { m.Date = normTime(m.Date) },
	}
}

// AlbumTable is the PostgreSQL album repository.
type AlbumTable struct {
	*table[content.Album]
}

// Albums returns the album repository.
func (s *Store) Albums() *AlbumTable {
	return &AlbumTable{&table[content.Album]{
		db:      s.db,
		name:    "albums",
		columns: []string{"id", "name", "photos"},
		sorts:   map[string]string{"name": "name"},
		idOf:    func(a *content.Album) *string { return &a.ID },
		values: func(a *content.Album) []any {
			return []any{a.ID, a.Name, a.Photos}
		},
		scan: scanAlbum,
		prepare: func(a *content.Album) {
			if a.Photos == nil {
				a.Photos = []string{}
			}
		},
	}}
}

// AppendPhoto appends ref with a single UPDATE, so concurrent appends to
// the same album serialise on the row lock and none are lost.
func (t *AlbumTable) AppendPhoto(ctx context.Context, id, ref string) (*content.Album, error) {
	row := t.db.QueryRow(ctx, `
		UPDATE albums SET photos = array_append(photos, $2)
		WHERE id = $1
		RETURNING id, name, photos`, id, ref)

	var a content.Album
	if err := scanAlbum(row, &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("append photo to album %s: %w", id, content.ErrNotFound)
		}
		return nil, classify("append photo to album "+id, err)
	}
	return &a, nil
}

func scanAlbum(row scanner, a *content.Album) error {
	if err := row.Scan(&a.ID, &a.Name, &a.Photos); err != nil {
		return err
	}
	if a.Photos == nil {
		a.Photos = []string{}
	}
	return nil
}
