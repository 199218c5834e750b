package schedule

import (
	"context"

	"smartattendance/internal/clock"
)

// Finder is the slice of the repository the resolver reads from.
type Finder interface {
	FindActive(ctx context.Context, facultyID string, day int, tod string) (Schedule, error)
	ListRemaining(ctx context.Context, day int, tod string) ([]View, error)
}

// Resolver answers "what is scheduled now" against the injected clock.
type Resolver struct {
	finder Finder
	clock  clock.Clock
}

// NewResolver creates a resolver.
func NewResolver(finder Finder, c clock.Clock) *Resolver {
	return &Resolver{finder: finder, clock: c}
}

// FindActive returns the schedule facultyID is teaching at this moment, or
// ErrNotFound.
func (r *Resolver) FindActive(ctx context.Context, facultyID string) (Schedule, error) {
	now := r.clock.Now()
	return r.finder.FindActive(ctx, facultyID, DayOfWeek(now), TimeOfDay(now))
}

// ListToday returns today's schedules that have not ended yet, earliest first.
func (r *Resolver) ListToday(ctx context.Context) ([]View, error) {
	now := r.clock.Now()
	return r.finder.ListRemaining(ctx, DayOfWeek(now), TimeOfDay(now))
}
