// Package service holds the shortening workflow: sanitize, validate,
// find-or-create, resolve and paginated listing over a store.Store.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/undeadops/snip/internal/store"
	"github.com/undeadops/snip/internal/validator"
)

const (
	maxRetries = 5

	// RecentLimit is how many records the index page shows.
	RecentLimit = 50

	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ErrRetriesExhausted is returned when every generated token collided.
var ErrRetriesExhausted = errors.New("max retries exceeded: unable to generate unique short url")

// Generator produces candidate short tokens.
type Generator interface {
	Generate() string
}

// Shortener - URL shortening business logic
type Shortener struct {
	store     store.Store
	generator Generator
	logger    zerolog.Logger
}

func NewShortener(s store.Store, gen Generator, logger zerolog.Logger) *Shortener {
	return &Shortener{
		store:     s,
		generator: gen,
		logger:    logger,
	}
}

// Shorten sanitizes and validates raw, then returns the existing record for
// that URL or creates a new one. Invalid input yields *validator.ValidationError.
func (s *Shortener) Shorten(ctx context.Context, raw string) (store.ShortURL, error) {
	full := validator.Sanitize(raw)
	if err := validator.Validate(full); err != nil {
		var vErr *validator.ValidationError
		if errors.As(err, &vErr) {
			s.logger.Warn().Str("rule", vErr.Rule).Str("reason", vErr.Message).Msg("url validation failed")
		}
		return store.ShortURL{}, err
	}

	existing, err := s.store.FindByFull(ctx, full)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.ShortURL{}, fmt.Errorf("looking up url: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		short := s.generator.Generate()

		rec, err := s.store.Create(ctx, full, short)
		if err == nil {
			s.logger.Info().Str("short", rec.Short).Str("full", rec.Full).Msg("short url created")
			return rec, nil
		}

		if errors.Is(err, store.ErrShortExists) {
			s.logger.Debug().Str("short", short).Int("attempt", attempt+1).Msg("short url collision, retrying")
			continue
		}

		return store.ShortURL{}, fmt.Errorf("saving record: %w", err)
	}

	return store.ShortURL{}, ErrRetriesExhausted
}

// Resolve counts one click on short and returns the updated record.
// Returns store.ErrNotFound for unknown tokens.
func (s *Shortener) Resolve(ctx context.Context, short string) (store.ShortURL, error) {
	return s.store.IncrementClicks(ctx, short)
}

// Stats returns the record for short without touching its counter.
func (s *Shortener) Stats(ctx context.Context, short string) (store.ShortURL, error) {
	return s.store.FindByShort(ctx, short)
}

// Delete removes short, returning store.ErrNotFound if there was nothing to remove.
func (s *Shortener) Delete(ctx context.Context, short string) error {
	deleted, err := s.store.DeleteByShort(ctx, short)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	if !deleted {
		return store.ErrNotFound
	}

	s.logger.Info().Str("short", short).Msg("short url deleted")
	return nil
}

// Recent returns the newest records for the index page.
func (s *Shortener) Recent(ctx context.Context) ([]store.ShortURL, error) {
	return s.store.ListRecent(ctx, RecentLimit, 0)
}
