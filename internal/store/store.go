package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound - no record holds the requested key
	ErrNotFound = errors.New("short url not found")

	// ErrShortExists - the short token is already taken; nothing was written
	ErrShortExists = errors.New("short url already exists")
)

// Store - persistence for short URL records. Implementations enforce
// uniqueness of Short and increment Clicks atomically on the storage side.
type Store interface {
	// FindByFull returns the record whose Full matches exactly.
	FindByFull(ctx context.Context, full string) (ShortURL, error)
	// FindByShort returns the record keyed by short.
	FindByShort(ctx context.Context, short string) (ShortURL, error)
	// Create persists a new record with zero clicks. Returns ErrShortExists
	// if short is taken.
	Create(ctx context.Context, full, short string) (ShortURL, error)
	// IncrementClicks adds one click and returns the updated record.
	IncrementClicks(ctx context.Context, short string) (ShortURL, error)
	// DeleteByShort removes the record, reporting whether one existed.
	DeleteByShort(ctx context.Context, short string) (bool, error)
	// ListRecent returns records newest first.
	ListRecent(ctx context.Context, limit, skip int) ([]ShortURL, error)
	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// ShortURL - a full URL mapped to its short token
type ShortURL struct {
	ID        string    `json:"id"`
	Full      string    `json:"full"`
	Short     string    `json:"short"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
