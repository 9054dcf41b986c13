// Package practice decides which notes are due for review on a given day,
// builds the daily practice batch and reports the day's completion status.
package practice

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/conorfennell/memomind/internal/domain"
)

// Product-tunable constants. None of them is derived from a spacing model.
const (
	// CandidateLimit caps how many due notes are fetched per selection.
	CandidateLimit = 10
	// MinBatchSize and MaxBatchSize bound the random batch size, inclusive.
	MinBatchSize = 2
	MaxBatchSize = 5
	// DailyQuota is the number of reviews that completes a day.
	DailyQuota = 2
)

// Store is the slice of the note store the engine needs. Implementations
// must scope every query to the owner.
type Store interface {
	// FindDue returns up to limit notes of the owner that are due at today,
	// never-reviewed notes first, then by ascending last review.
	FindDue(ctx context.Context, ownerID string, today time.Time, limit int) ([]domain.Note, error)
	CountReviewedSince(ctx context.Context, ownerID string, since time.Time) (int, error)
	CountByOwner(ctx context.Context, ownerID string) (int, error)
	CountDue(ctx context.Context, ownerID string, today time.Time) (int, error)
	// MarkReviewed atomically sets the last review to at and increments the
	// review count. It returns domain.ErrNotFound when the key matches nothing.
	MarkReviewed(ctx context.Context, key domain.NoteKey, at time.Time) (*domain.Note, error)
}

// Rand is the entropy source used for batch sizing and shuffling.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// Status is the daily practice summary of a user.
type Status struct {
	Completed          bool `json:"completed"`
	ReviewedToday      int  `json:"reviewedToday"`
	TotalNotes         int  `json:"totalNotes"`
	NotesNeedingReview int  `json:"notesNeedingReview"`
}

// Engine implements review selection and daily status on top of a Store.
type Engine struct {
	store    Store
	location *time.Location
	now      func() time.Time

	mu  sync.Mutex
	rng Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand injects the entropy source.
func WithRand(rng Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the timezone whose midnight starts a practice day.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// NewEngine creates an engine. Without options it uses the local timezone,
// the wall clock and a randomly seeded generator.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		location: time.Local,
		now:      time.Now,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartOfDay returns midnight of the calendar day containing now in loc.
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// IsDue reports whether a note is eligible for practice on the day starting at today.
func IsDue(note domain.Note, today time.Time) bool {
	return note.LastReviewedAt == nil || note.LastReviewedAt.Before(today)
}

// Today returns the start of the current practice day.
func (e *Engine) Today() time.Time {
	return StartOfDay(e.now(), e.location)
}

// DailyBatch returns the practice batch for the owner: between MinBatchSize
// and MaxBatchSize randomly chosen due notes, clipped to the number available.
func (e *Engine) DailyBatch(ctx context.Context, ownerID string) ([]domain.Note, error) {
	today := e.Today()
	candidates, err := e.store.FindDue(ctx, ownerID, today, CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch practice candidates: %w", err)
	}
	if len(candidates) == 0 {
		return []domain.Note{}, nil
	}
	return e.sample(candidates), nil
}

func (e *Engine) sample(candidates []domain.Note) []domain.Note {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := BatchSize(len(candidates), e.rng)
	shuffled := make([]domain.Note, len(candidates))
	copy(shuffled, candidates)
	e.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:count]
}

// BatchSize draws k uniformly from [MinBatchSize, MaxBatchSize] and clips it
// to n. It returns 0 when n is 0.
func BatchSize(n int, rng Rand) int {
	if n <= 0 {
		return 0
	}
	k := MinBatchSize + rng.IntN(MaxBatchSize-MinBatchSize+1)
	return min(k, n)
}

// Status computes the owner's practice counters for the current day.
func (e *Engine) Status(ctx context.Context, ownerID string) (Status, error) {
	today := e.Today()

	reviewed, err := e.store.CountReviewedSince(ctx, ownerID, today)
	if err != nil {
		return Status{}, fmt.Errorf("failed to count reviewed notes: %w", err)
	}
	total, err := e.store.CountByOwner(ctx, ownerID)
	if err != nil {
		return Status{}, fmt.Errorf("failed to count notes: %w", err)
	}
	due, err := e.store.CountDue(ctx, ownerID, today)
	if err != nil {
		return Status{}, fmt.Errorf("failed to count due notes: %w", err)
	}

	return Status{
		Completed:          reviewed >= DailyQuota,
		ReviewedToday:      reviewed,
		TotalNotes:         total,
		NotesNeedingReview: due,
	}, nil
}

// Review records that the note was reviewed now.
func (e *Engine) Review(ctx context.Context, key domain.NoteKey) (*domain.Note, error) {
	if key.ID == "" || key.OwnerID == "" {
		return nil, domain.ErrNotFound
	}
	return e.store.MarkReviewed(ctx, key, e.now())
}
