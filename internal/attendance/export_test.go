package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"smartattendance/internal/store"
)

// Record is one attendance_log row as stored.
type Record struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ScheduleID int64     `json:"schedule_id"`
	LogDate    string    `json:"log_date"`
	Status     string    `json:"status"`
	LogTime    time.Time `json:"log_time"`
}

// Get returns the row for (userID, scheduleID, logDate), or nil.
func (r *Repository) Get(ctx context.Context, userID string, scheduleID int64, logDate string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, schedule_id, log_date, status, log_time
		FROM attendance_log
		WHERE user_id = $1 AND schedule_id = $2 AND log_date = $3
	`, userID, scheduleID, logDate)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.ScheduleID, &rec.LogDate, &rec.Status, &rec.LogTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, store.Wrap("get attendance", err)
	}
	return &rec, nil
}

// Count returns how many rows exist for (userID, scheduleID, logDate).
func (r *Repository) Count(ctx context.Context, userID string, scheduleID int64, logDate string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_log
		WHERE user_id = $1 AND schedule_id = $2 AND log_date = $3
	`, userID, scheduleID, logDate).Scan(&n)
	return n, store.Wrap("count attendance", err)
}
