package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"smartattendance/internal/logger"
	"smartattendance/internal/metrics"
	"smartattendance/internal/schedule"
)

// Outcome of a faculty sighting.
type Outcome int

const (
	InSession  Outcome = iota + 1 // already the active faculty
	Started                       // new session, countdown armed
	Resumed                       // new session, countdown was already running
	NoSchedule                    // nothing to do for this faculty now
)

func (o Outcome) String() string {
	switch o {
	case InSession:
		return "in_session"
	case Started:
		return "started"
	case Resumed:
		return "resumed"
	case NoSchedule:
		return "no_schedule"
	default:
		return "unknown"
	}
}

// Session identifies who is teaching which schedule.
type Session struct {
	ScheduleID int64
	FacultyID  string
}

// Result is what OnFacultySeen did.
type Result struct {
	Outcome    Outcome
	ScheduleID int64
	FacultyID  string
}

// Message is the operator-facing text for the result.
func (r Result) Message() string {
	switch r.Outcome {
	case InSession:
		return fmt.Sprintf("Class %d is in session. Timer is running.", r.ScheduleID)
	case Started:
		return fmt.Sprintf("Class %d started. Auto-finalize timer running.", r.ScheduleID)
	case Resumed:
		return fmt.Sprintf("Class %d resumed. Timer already running.", r.ScheduleID)
	default:
		return fmt.Sprintf("Faculty %s seen, but has no active schedule. No action taken.", r.FacultyID)
	}
}

// Status is a read-only snapshot of the controller.
type Status struct {
	Active     bool   `json:"active"`
	FacultyID  string `json:"faculty"`
	ScheduleID *int64 `json:"schedule_id"`
}

// Resolver finds the schedule a faculty member is teaching now.
type Resolver interface {
	FindActive(ctx context.Context, facultyID string) (schedule.Schedule, error)
}

// Timers arms auto-finalize countdowns; Ensure reports whether it armed a new
// one.
type Timers interface {
	Ensure(scheduleID int64) bool
}

// SwitchPolicy is told when the active session moves from prev to a
// different schedule.
type SwitchPolicy interface {
	OnSwitch(prev, next Session)
}

// KeepPreviousTimers leaves the superseded schedule's countdown armed, so it
// still auto-finalizes at its original deadline.
type KeepPreviousTimers struct{}

func (KeepPreviousTimers) OnSwitch(Session, Session) {}

// Controller holds the single active session and the pending substitute and
// applies recognition events to them. The timer registry is locked separately;
// arming happens after the session lock is released.
type Controller struct {
	resolver Resolver
	timers   Timers
	policy   SwitchPolicy
	log      *zap.Logger

	mu      sync.RWMutex
	active  *Session
	pending *Session
}

// Option configures a Controller.
type Option func(*Controller)

// WithSwitchPolicy replaces the default KeepPreviousTimers policy.
func WithSwitchPolicy(p SwitchPolicy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithLogger sets the controller's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// NewController creates a controller with no active session.
func NewController(resolver Resolver, timers Timers, opts ...Option) *Controller {
	c := &Controller{
		resolver: resolver,
		timers:   timers,
		policy:   KeepPreviousTimers{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrNop(c.log)
	return c
}

// OnFacultySeen applies a liveness-verified faculty sighting.
func (c *Controller) OnFacultySeen(ctx context.Context, facultyID string) (Result, error) {
	c.mu.Lock()
	if res, ok := c.tryLocked(facultyID); ok {
		c.mu.Unlock()
		return c.finish(res)
	}
	c.mu.Unlock()

	s, err := c.resolver.FindActive(ctx, facultyID)
	if errors.Is(err, schedule.ErrNotFound) {
		c.log.Info("faculty seen without an active schedule", zap.String("faculty_id", facultyID))
		return c.finish(adoption{result: Result{Outcome: NoSchedule, FacultyID: facultyID}})
	}
	if err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	// state may have moved while the schedule was being resolved
	res, ok := c.tryLocked(facultyID)
	if !ok {
		res = c.adoptLocked(Session{ScheduleID: s.ScheduleID, FacultyID: facultyID})
		c.log.Info("regularly scheduled faculty seen",
			zap.String("faculty_id", facultyID), zap.Int64("schedule_id", s.ScheduleID))
	}
	c.mu.Unlock()
	return c.finish(res)
}

type adoption struct {
	result Result
	next   *Session
	prev   *Session
}

// tryLocked handles the paths that need no schedule lookup: the faculty is
// already active, or is the pending substitute.
func (c *Controller) tryLocked(facultyID string) (adoption, bool) {
	if c.active != nil && c.active.FacultyID == facultyID {
		return adoption{result: Result{Outcome: InSession, ScheduleID: c.active.ScheduleID, FacultyID: facultyID}}, true
	}
	if c.pending != nil && c.pending.FacultyID == facultyID {
		next := *c.pending
		c.pending = nil
		c.log.Info("substitute verified by camera",
			zap.String("faculty_id", facultyID), zap.Int64("schedule_id", next.ScheduleID))
		return c.adoptLocked(next), true
	}
	return adoption{}, false
}

func (c *Controller) adoptLocked(next Session) adoption {
	prev := c.active
	c.active = &next
	return adoption{next: &next, prev: prev}
}

// finish arms the countdown for an adopted session and records the outcome.
func (c *Controller) finish(a adoption) (Result, error) {
	res := a.result
	if a.next != nil {
		if a.prev != nil && a.prev.ScheduleID != a.next.ScheduleID {
			c.policy.OnSwitch(*a.prev, *a.next)
		}
		res = Result{Outcome: Resumed, ScheduleID: a.next.ScheduleID, FacultyID: a.next.FacultyID}
		if c.timers.Ensure(a.next.ScheduleID) {
			res.Outcome = Started
		}
		c.log.Info("session adopted",
			zap.Int64("schedule_id", res.ScheduleID),
			zap.String("faculty_id", res.FacultyID),
			zap.Stringer("outcome", res.Outcome))
	}
	metrics.SessionOutcomes.WithLabelValues(res.Outcome.String()).Inc()
	return res, nil
}

// AssignSubstitute records that facultyID will run scheduleID once the camera
// confirms them. A later request replaces an earlier one.
func (c *Controller) AssignSubstitute(scheduleID int64, facultyID string) {
	c.mu.Lock()
	c.pending = &Session{ScheduleID: scheduleID, FacultyID: facultyID}
	c.mu.Unlock()

	metrics.SubstitutesAssigned.Inc()
	c.log.Info("pending substitute request queued",
		zap.Int64("schedule_id", scheduleID), zap.String("faculty_id", facultyID))
}

// Status returns a consistent snapshot of the active session.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return Status{}
	}
	id := c.active.ScheduleID
	return Status{Active: true, FacultyID: c.active.FacultyID, ScheduleID: &id}
}

// ActiveScheduleID returns the schedule currently in session, if any.
func (c *Controller) ActiveScheduleID() (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return 0, false
	}
	return c.active.ScheduleID, true
}

// Pending returns the queued substitute, if any.
func (c *Controller) Pending() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pending == nil {
		return Session{}, false
	}
	return *c.pending, true
}
