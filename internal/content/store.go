package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// recentMemoryLimit is how many memories RecentMemories returns.
const recentMemoryLimit = 2

// Store is the domain layer over the four entity repositories.
type Store struct {
	milestones    Repository[Milestone]
	notifications Repository[Notification]
	memories      Repository[Memory]
	albums        AlbumRepository
	blobs         BlobStorage
	scheduler     Scheduler
	now           func() time.Time
	logger        *zap.Logger
}

// Repositories bundles the per-kind repositories a Store delegates to.
type Repositories struct {
	Milestones    Repository[Milestone]
	Notifications Repository[Notification]
	Memories      Repository[Memory]
	Albums        AlbumRepository
}

// NewStore creates a content store.
func NewStore(repos Repositories, blobs BlobStorage, logger *zap.Logger) *Store {
	return &Store{
		milestones:    repos.Milestones,
		notifications: repos.Notifications,
		memories:      repos.Memories,
		albums:        repos.Albums,
		blobs:         blobs,
		now:           time.Now,
		logger:        logger,
	}
}

// SetScheduler enables notification delivery for newly created notifications.
func (s *Store) SetScheduler(sch Scheduler) {
	s.scheduler = sch
}

// SetClock overrides the creation-time source used for Memory date defaults.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// CreateMilestone persists a new milestone.
func (s *Store) CreateMilestone(ctx context.Context, in MilestoneInput) (*Milestone, error) {
	m := &Milestone{
		Title:       in.Title,
		Date:        in.Date,
		Description: in.Description,
	}
	if err := s.milestones.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create milestone: %w", err)
	}
	return m, nil
}

// ListMilestones returns every milestone in no particular order.
func (s *Store) ListMilestones(ctx context.Context) ([]*Milestone, error) {
	ms, err := s.milestones.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	return ms, nil
}

// CreateNotification persists a new notification and, when it carries an
// event date and a scheduler is set, queues it for delivery.
func (s *Store) CreateNotification(ctx context.Context, in NotificationInput) (*Notification, error) {
	n := &Notification{
		Message:   in.Message,
		EventDate: in.EventDate,
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if s.scheduler != nil && n.EventDate != nil {
		// The record is already stored; scheduling failures are only logged.
		if err := s.scheduler.Schedule(ctx, n); err != nil {
			s.logger.Warn("notification not scheduled",
				zap.String("id", n.ID), zap.Error(err))
		}
	}
	return n, nil
}

// ListNotifications returns every notification in no particular order.
func (s *Store) ListNotifications(ctx context.Context) ([]*Notification, error) {
	ns, err := s.notifications.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return ns, nil
}

// CreateMemory persists a new memory, dating it now when no date is given.
func (s *Store) CreateMemory(ctx context.Context, in MemoryInput) (*Memory, error) {
	m := &Memory{Content: in.Content}
	if in.Date != nil {
		m.Date = *in.Date
	} else {
		m.Date = s.now()
	}
	if err := s.memories.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create memory: %w", err)
	}
	return m, nil
}

// ListMemories returns every memory in no particular order.
func (s *Store) ListMemories(ctx context.Context) ([]*Memory, error) {
	ms, err := s.memories.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	return ms, nil
}

// RecentMemories returns up to two memories, newest first.
func (s *Store) RecentMemories(ctx context.Context) ([]*Memory, error) {
	ms, err := s.memories.FindSortedLimited(ctx, SortByDateDesc, recentMemoryLimit)
	if err != nil {
		return nil, fmt.Errorf("recent memories: %w", err)
	}
	return ms, nil
}

// CreateAlbum persists a new, empty album.
func (s *Store) CreateAlbum(ctx context.Context, name string) (*Album, error) {
	a := &Album{Name: name, Photos: []string{}}
	if err := s.albums.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create album: %w", err)
	}
	return a, nil
}

// GetAlbum returns the album with the given id or ErrNotFound.
func (s *Store) GetAlbum(ctx context.Context, id string) (*Album, error) {
	a, ok, err := s.albums.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get album %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("album %s: %w", id, ErrNotFound)
	}
	return a, nil
}

// ListAlbums returns every album in no particular order.
func (s *Store) ListAlbums(ctx context.Context) ([]*Album, error) {
	as, err := s.albums.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	return as, nil
}

// AttachPhoto appends ref to an existing album's photos.
func (s *Store) AttachPhoto(ctx context.Context, albumID, ref string) (*Album, error) {
	if ref == "" {
		return nil, fmt.Errorf("photo reference is empty: %w", ErrValidation)
	}
	a, err := s.albums.AppendPhoto(ctx, albumID, ref)
	if err != nil {
		return nil, fmt.Errorf("attach photo to album %s: %w", albumID, err)
	}
	return a, nil
}

// UploadPhoto stores the uploaded bytes and attaches the resulting reference
// to the album. Nothing is written when the album does not exist, and the
// stored blob is removed again if the attach fails.
func (s *Store) UploadPhoto(ctx context.Context, albumID string, up PhotoUpload) (*Album, error) {
	if _, err := s.GetAlbum(ctx, albumID); err != nil {
		return nil, err
	}

	ref, err := s.blobs.Store(ctx, up.Field, up.Filename, up.Body)
	if err != nil {
		if !errors.Is(err, ErrUpload) {
			err = fmt.Errorf("%w: %w", ErrUpload, err)
		}
		return nil, fmt.Errorf("upload photo to album %s: %w", albumID, err)
	}

	a, err := s.AttachPhoto(ctx, albumID, ref)
	if err != nil {
		// Use a fresh context so a cancelled request still cleans up.
		if rmErr := s.blobs.Remove(context.WithoutCancel(ctx), ref); rmErr != nil {
			s.logger.Error("orphaned photo blob",
				zap.String("ref", ref), zap.Error(rmErr))
		}
		return nil, err
	}

	s.logger.Info("photo attached",
		zap.String("album", albumID),
		zap.String("ref", ref),
		zap.Int("photos", len(a.Photos)))
	return a, nil
}
