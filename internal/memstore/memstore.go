// Package memstore keeps content entities in process memory. It is not
// persistent and is meant for local development and tests.
package memstore

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/nidhogg/lovebook/internal/content"
)

// Open returns a fresh set of empty in-memory repositories.
func Open() content.Repositories {
	return content.Repositories{
		Milestones:    NewMilestones(),
		Notifications: NewNotifications(),
		Memories:      NewMemories(),
		Albums:        NewAlbums(),
	}
}

// NewMilestones creates an in-memory milestone repository.
func NewMilestones() *Repo[content.Milestone] {
	return NewRepo(
		func(m *content.Milestone) *string { return &m.ID },
		func(m *content.Milestone) *content.Milestone {
			c := *m
			c.Date = cloneTime(m.Date)
			return &c
		},
		map[string]func(a, b *content.Milestone) int{
			"date":  func(a, b *content.Milestone) int { return compareOptional(a.Date, b.Date) },
			"title": func(a, b *content.Milestone) int { return strings.Compare(a.Title, b.Title) },
		},
	)
}

// NewNotifications creates an in-memory notification repository.
func NewNotifications() *Repo[content.Notification] {
	return NewRepo(
		func(n *content.Notification) *string { return &n.ID },
		func(n *content.Notification) *content.Notification {
			c := *n
			c.EventDate = cloneTime(n.EventDate)
			return &c
		},
		map[string]func(a, b *content.Notification) int{
			"eventDate": func(a, b *content.Notification) int { return compareOptional(a.EventDate, b.EventDate) },
		},
	)
}

// NewMemories creates an in-memory memory repository.
func NewMemories() *Repo[content.Memory] {
	return NewRepo(
		func(m *content.Memory) *string { return &m.ID },
		func(m *content.Memory) *content.Memory {
			c := *m
			return &c
		},
		map[string]func(a, b *content.Memory) int{
			"date": func(a, b *content.Memory) int { return a.Date.Compare(b.Date) },
		},
	)
}

// Albums is the in-memory album repository.
type Albums struct {
	*Repo[content.Album]
}

// NewAlbums creates an in-memory album repository.
func NewAlbums() *Albums {
	return &Albums{NewRepo(
		func(a *content.Album) *string { return &a.ID },
		func(a *content.Album) *content.Album {
			c := *a
			c.Photos = slices.Clone(a.Photos)
			if c.Photos == nil {
				c.Photos = []string{}
			}
			return &c
		},
		map[string]func(a, b *content.Album) int{
			"name": func(a, b *content.Album) int { return strings.Compare(a.Name, b.Name) },
		},
	)}
}

// AppendPhoto appends ref under the repository write lock, so concurrent
// appends to the same album are never lost.
func (r *Albums) AppendPhoto(ctx context.Context, id, ref string) (*content.Album, error) {
	return r.update(ctx, id, func(a *content.Album) {
		a.Photos = append(a.Photos, ref)
	})
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// compareOptional orders unset times before set ones.
func compareOptional(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
