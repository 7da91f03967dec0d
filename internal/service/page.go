package service

import (
	"context"
	"fmt"
	"math"

	"github.com/undeadops/snip/internal/store"
)

// Pagination describes where a Page sits in the full listing.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

type Page struct {
	URLs       []store.ShortURL `json:"urls"`
	Pagination Pagination       `json:"pagination"`
}

// NormalizePage clamps page and limit to usable values.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// List returns one page of records, newest first.
func (s *Shortener) List(ctx context.Context, page, limit int) (Page, error) {
	page, limit = NormalizePage(page, limit)

	total, err := s.store.Count(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("counting records: %w", err)
	}

	result := Page{
		URLs: []store.ShortURL{},
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + int64(limit) - 1) / int64(limit),
		},
	}

	// an offset that does not fit in an int lies past every record
	if page-1 > math.MaxInt/limit {
		return result, nil
	}
	skip := (page - 1) * limit

	urls, err := s.store.ListRecent(ctx, limit, skip)
	if err != nil {
		return Page{}, fmt.Errorf("listing records: %w", err)
	}

	result.URLs = urls
	result.Pagination.HasMore = int64(skip+len(urls)) < total
	return result, nil
}
