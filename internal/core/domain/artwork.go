package domain

import (
	"strings"
	"time"
)

// Artwork is the primary entity: one generated image and its
// generation metadata. Soft-deleted artworks stay in place so the
// trash flow can restore or purge them later.
type Artwork struct {
	ID             string
	Title          string
	Prompt         string
	NegativePrompt string
	Model          string
	ImagePath      string
	ThumbnailPath  string
	Width          int
	Height         int
	Seed           int64
	Favorite       bool
	Tags           []string

	IsDeleted bool
	DeletedAt *time.Time
	DeletedBy string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the fields required before an artwork can be saved.
func (a *Artwork) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrInvalidInput
	}
	if strings.TrimSpace(a.Title) == "" {
		return ErrInvalidInput
	}
	return nil
}

// ArtworkPatch is a partial update. Nil fields are left untouched.
// BaselineUpdatedAt is the UpdatedAt the caller last read; it is the
// baseline for optimistic conflict detection.
type ArtworkPatch struct {
	Title          *string
	Prompt         *string
	NegativePrompt *string
	Model          *string
	ImagePath      *string
	ThumbnailPath  *string
	Width          *int
	Height         *int
	Seed           *int64
	Favorite       *bool
	Tags           []string

	BaselineUpdatedAt *time.Time
}

// Apply copies the non-nil patch fields onto the artwork and bumps
// UpdatedAt to now.
func (p ArtworkPatch) Apply(a *Artwork, now time.Time) {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Prompt != nil {
		a.Prompt = *p.Prompt
	}
	if p.NegativePrompt != nil {
		a.NegativePrompt = *p.NegativePrompt
	}
	if p.Model != nil {
		a.Model = *p.Model
	}
	if p.ImagePath != nil {
		a.ImagePath = *p.ImagePath
	}
	if p.ThumbnailPath != nil {
		a.ThumbnailPath = *p.ThumbnailPath
	}
	if p.Width != nil {
		a.Width = *p.Width
	}
	if p.Height != nil {
		a.Height = *p.Height
	}
	if p.Seed != nil {
		a.Seed = *p.Seed
	}
	if p.Favorite != nil {
		a.Favorite = *p.Favorite
	}
	if p.Tags != nil {
		a.Tags = p.Tags
	}
	a.UpdatedAt = now
}
