package schedule

import (
	"context"
	"database/sql"
	"errors"

	"smartattendance/internal/store"
)

// Get returns a single schedule by id.
func (r *Repository) Get(ctx context.Context, scheduleID int64) (Schedule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT schedule_id, class_id, faculty_id, day_of_week, start_time, end_time
		FROM schedules WHERE schedule_id = $1
	`, scheduleID)
	var s Schedule
	if err := row.Scan(&s.ScheduleID, &s.ClassID, &s.FacultyID, &s.DayOfWeek, &s.StartTime, &s.EndTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Schedule{}, ErrNotFound
		}
		return Schedule{}, store.Wrap("get schedule", err)
	}
	return s, nil
}
