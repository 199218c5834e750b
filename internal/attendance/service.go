package attendance

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"smartattendance/internal/clock"
	"smartattendance/internal/logger"
	"smartattendance/internal/metrics"
)

// ErrNoActiveSession is returned when a student is seen while no class is in
// session.
var ErrNoActiveSession = errors.New("no active class session")

// Outcome describes what a student sighting did.
type Outcome int

const (
	LoggedTemporary Outcome = iota + 1
	AlreadyConfirmed
	AlreadyTemporary
)

func (o Outcome) String() string {
	switch o {
	case LoggedTemporary:
		return "logged_temporary"
	case AlreadyConfirmed:
		return "already_confirmed"
	case AlreadyTemporary:
		return "already_temporary"
	default:
		return "unknown"
	}
}

// Created reports whether the sighting inserted a new row.
func (o Outcome) Created() bool { return o == LoggedTemporary }

// Message is the reply shown for userID's sighting in scheduleID.
func (o Outcome) Message(userID string, scheduleID int64) string {
	switch o {
	case LoggedTemporary:
		return fmt.Sprintf("Successfully logged %s as temporary for schedule %d", userID, scheduleID)
	case AlreadyConfirmed:
		return "Student already confirmed for this class"
	default:
		return "Student already temporary for this class"
	}
}

const dateLayout = "2006-01-02"

// Recorder writes temporary attendance and confirms schedules for the current
// day as given by its clock.
type Recorder struct {
	repo  *Repository
	clock clock.Clock
	log   *zap.Logger
}

// NewRecorder creates a recorder backed by a repository.
func NewRecorder(repo *Repository, c clock.Clock, log *zap.Logger) *Recorder {
	return &Recorder{repo: repo, clock: c, log: logger.OrNop(log)}
}

// Today returns the current attendance date.
func (r *Recorder) Today() string {
	return r.clock.Now().Format(dateLayout)
}

// LogStudentEntry marks userID temporarily present for scheduleID. A zero
// scheduleID means no class is in session.
func (r *Recorder) LogStudentEntry(ctx context.Context, userID string, scheduleID int64) (Outcome, error) {
	if scheduleID <= 0 {
		return 0, ErrNoActiveSession
	}
	now := r.clock.Now()
	out, err := r.repo.LogTemporary(ctx, userID, scheduleID, now.Format(dateLayout), now)
	if err != nil {
		return 0, err
	}
	metrics.StudentEntries.WithLabelValues(out.String()).Inc()
	if out.Created() {
		r.log.Info("student logged as temporary",
			zap.String("user_id", userID), zap.Int64("schedule_id", scheduleID))
	}
	return out, nil
}

// Confirm finalizes today's temporary rows of scheduleID. Repeated calls
// finalize nothing further.
func (r *Recorder) Confirm(ctx context.Context, scheduleID int64) (int64, error) {
	n, err := r.repo.Finalize(ctx, scheduleID, r.Today())
	if err != nil {
		return 0, err
	}
	metrics.RowsFinalized.Add(float64(n))
	r.log.Info("schedule confirmed", zap.Int64("schedule_id", scheduleID), zap.Int64("finalized", n))
	return n, nil
}

// Status lists today's attendance, newest first.
func (r *Recorder) Status(ctx context.Context) ([]StatusRow, error) {
	return r.repo.ListForDate(ctx, r.Today())
}
