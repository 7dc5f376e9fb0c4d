// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Post represents an anonymous locality-scoped note.
//
// Latitude and Longitude are retained for server-side distance refinement
// only. They are never serialized: the json:"-" tags keep them out of every
// API response, and the query engine additionally nils them before returning
// posts to any caller.
type Post struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Content string `gorm:"type:text;not null" json:"content"`
	// CellID is the quantized spatial cell derived from the author's
	// coordinate at write time. It is never recomputed after creation.
	CellID *string `gorm:"index;size:16" json:"cell_id,omitempty"`
	// Locality is the canonical place slug; LocalityName the display name.
	Locality     *string  `gorm:"index;size:128" json:"locality,omitempty"`
	LocalityName *string  `gorm:"size:256" json:"locality_name,omitempty"`
	Latitude     *float64 `json:"-"`
	Longitude    *float64 `json:"-"`
	// IsVisible is decided by moderation before the row is inserted and is
	// written as part of the same INSERT, so a not-yet-moderated post can
	// never be observed as visible by a concurrent reader.
	IsVisible bool      `gorm:"not null;default:true;index" json:"is_visible"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ModerationRecord is the audit-trail entry for a single moderation decision.
// Exactly one is written per stored post, fallback decisions included.
type ModerationRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	IsAllowed bool      `gorm:"not null" json:"is_allowed"`
	Reason    string    `gorm:"type:text;not null" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// StripCoordinates removes the raw coordinate from the post. Every read path
// must call this before a post leaves the service layer.
func (p *Post) StripCoordinates() {
	p.Latitude = nil
	p.Longitude = nil
}
