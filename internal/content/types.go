package content

import (
	"io"
	"time"
)

// Milestone is a titled, dated event in the relationship.
type Milestone struct {
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Notification is a standalone reminder message tied to an event date.
type Notification struct {
	ID        string     `json:"id"`
	Message   string     `json:"message,omitempty"`
	EventDate *time.Time `json:"eventDate,omitempty"`
}

// Memory is a free-text entry. Date is always set once stored.
type Memory struct {
	ID      string    `json:"id"`
	Content string    `json:"content,omitempty"`
	Date    time.Time `json:"date"`
}

// Album groups uploaded photo references in upload order.
type Album struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Photos []string `json:"photos"`
}

// MilestoneInput carries caller-supplied milestone fields.
type MilestoneInput struct {
	Title       string
	Date        *time.Time
	Description string
}

// NotificationInput carries caller-supplied notification fields.
type NotificationInput struct {
	Message   string
	EventDate *time.Time
}

// MemoryInput carries caller-supplied memory fields. A nil Date means "now".
type MemoryInput struct {
	Content string
	Date    *time.Time
}

// PhotoUpload is a single uploaded file destined for an album.
type PhotoUpload struct {
	Field    string // multipart field name, used as the stored file prefix
	Filename string
	Body     io.Reader
}
