package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound means the faculty has nothing scheduled right now.
var ErrNotFound = errors.New("no active class found for this faculty at this time")

// Schedule is one weekly class slot taught by a faculty member.
type Schedule struct {
	ScheduleID int64  `json:"schedule_id" yaml:"schedule_id"`
	ClassID    int64  `json:"class_id" yaml:"class_id"`
	FacultyID  string `json:"faculty_id" yaml:"faculty_id"`
	DayOfWeek  int    `json:"day_of_week" yaml:"day_of_week"`
	StartTime  string `json:"start_time" yaml:"start_time"`
	EndTime    string `json:"end_time" yaml:"end_time"`
}

// Class is the course a schedule belongs to.
type Class struct {
	ClassID   int64  `json:"class_id" yaml:"class_id"`
	ClassCode string `json:"class_code" yaml:"class_code"`
	ClassName string `json:"class_name" yaml:"class_name"`
}

// View is a schedule joined with its class for display.
type View struct {
	ScheduleID int64  `json:"schedule_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	ClassCode  string `json:"class_code"`
	ClassName  string `json:"class_name"`
	FacultyID  string `json:"faculty_id"`
}

const clockLayout = "15:04:05"

// DayOfWeek maps t to the store's day encoding: Sunday = 1 .. Saturday = 7.
func DayOfWeek(t time.Time) int {
	return int(t.Weekday()) + 1
}

// TimeOfDay formats t as a zero-padded HH:MM:SS string, the form schedule
// times are stored and compared in.
func TimeOfDay(t time.Time) string {
	return t.Format(clockLayout)
}

// NormalizeClock accepts "H:MM", "HH:MM" or "HH:MM:SS" and returns HH:MM:SS.
func NormalizeClock(s string) (string, error) {
	for _, layout := range []string{clockLayout, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(clockLayout), nil
		}
	}
	return "", fmt.Errorf("invalid time of day %q", s)
}

// Validate normalizes the schedule's times and checks its fields.
func (s *Schedule) Validate() error {
	if s.ScheduleID <= 0 {
		return fmt.Errorf("schedule_id must be positive")
	}
	if s.FacultyID == "" {
		return fmt.Errorf("schedule %d: faculty_id required", s.ScheduleID)
	}
	if s.DayOfWeek < 1 || s.DayOfWeek > 7 {
		return fmt.Errorf("schedule %d: day_of_week must be 1..7, got %d", s.ScheduleID, s.DayOfWeek)
	}
	start, err := NormalizeClock(s.StartTime)
	if err != nil {
		return fmt.Errorf("schedule %d: %w", s.ScheduleID, err)
	}
	end, err := NormalizeClock(s.EndTime)
	if err != nil {
		return fmt.Errorf("schedule %d: %w", s.ScheduleID, err)
	}
	if start > end {
		return fmt.Errorf("schedule %d: start %s after end %s", s.ScheduleID, start, end)
	}
	s.StartTime, s.EndTime = start, end
	return nil
}
