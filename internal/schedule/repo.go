package schedule

import (
	"context"
	"database/sql"
	"errors"

	"smartattendance/internal/store"
)

// Repository reads and seeds schedules.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindActive returns the first schedule of facultyID on day whose
// [start_time, end_time] contains tod, both ends inclusive.
func (r *Repository) FindActive(ctx context.Context, facultyID string, day int, tod string) (Schedule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT schedule_id, class_id, faculty_id, day_of_week, start_time, end_time
		FROM schedules
		WHERE faculty_id = $1 AND day_of_week = $2 AND start_time <= $3 AND end_time >= $3
		ORDER BY start_time, schedule_id
		LIMIT 1
	`, facultyID, day, tod)
	var s Schedule
	if err := row.Scan(&s.ScheduleID, &s.ClassID, &s.FacultyID, &s.DayOfWeek, &s.StartTime, &s.EndTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Schedule{}, ErrNotFound
		}
		return Schedule{}, store.Wrap("find active schedule", err)
	}
	return s, nil
}

// ListRemaining returns schedules on day that end at or after tod, ordered by
// start time.
func (r *Repository) ListRemaining(ctx context.Context, day int, tod string) ([]View, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.schedule_id, s.start_time, s.end_time, c.class_code, c.class_name, s.faculty_id
		FROM schedules s
		JOIN classes c ON s.class_id = c.class_id
		WHERE s.day_of_week = $1 AND s.end_time >= $2
		ORDER BY s.start_time ASC, s.schedule_id ASC
	`, day, tod)
	if err != nil {
		return nil, store.Wrap("list schedules", err)
	}
	defer rows.Close()

	views := []View{}
	for rows.Next() {
		var v View
		if err := rows.Scan(&v.ScheduleID, &v.StartTime, &v.EndTime, &v.ClassCode, &v.ClassName, &v.FacultyID); err != nil {
			return nil, store.Wrap("scan schedule", err)
		}
		views = append(views, v)
	}
	return views, store.Wrap("list schedules", rows.Err())
}

// Seed upserts classes and schedules in one transaction.
func (r *Repository) Seed(ctx context.Context, classes []Class, schedules []Schedule) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Wrap("seed begin", err)
	}
	defer tx.Rollback()

	for _, c := range classes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO classes (class_id, class_code, class_name)
			VALUES ($1, $2, $3)
			ON CONFLICT (class_id) DO UPDATE SET
				class_code = EXCLUDED.class_code,
				class_name = EXCLUDED.class_name
		`, c.ClassID, c.ClassCode, c.ClassName); err != nil {
			return store.Wrap("seed class", err)
		}
	}
	for _, s := range schedules {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO schedules (schedule_id, class_id, faculty_id, day_of_week, start_time, end_time)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (schedule_id) DO UPDATE SET
				class_id = EXCLUDED.class_id,
				faculty_id = EXCLUDED.faculty_id,
				day_of_week = EXCLUDED.day_of_week,
				start_time = EXCLUDED.start_time,
				end_time = EXCLUDED.end_time
		`, s.ScheduleID, s.ClassID, s.FacultyID, s.DayOfWeek, s.StartTime, s.EndTime); err != nil {
			return store.Wrap("seed schedule", err)
		}
	}
	return store.Wrap("seed commit", tx.Commit())
}
