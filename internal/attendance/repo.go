package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"smartattendance/internal/store"
)

const (
	StatusTemporary = "temporary_present"
	StatusFinal     = "final_present"
)

// StatusRow is a record joined with its class for the dashboard.
type StatusRow struct {
	UserID     string    `json:"user_id"`
	ScheduleID int64     `json:"schedule_id"`
	Status     string    `json:"status"`
	LogTime    time.Time `json:"log_time"`
	ClassCode  string    `json:"class_code"`
}

// Repository persists attendance rows.
type Repository struct {
	db *sql.DB

	// beforeInsert runs between the lookup and the insert of LogTemporary.
	beforeInsert func(ctx context.Context, tx *sql.Tx) error
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// LogTemporary records userID as temporary_present for the schedule on
// logDate unless a row already exists. Lookup and insert share a transaction
// and the insert is guarded by the (user_id, schedule_id, log_date) unique
// key, so concurrent sightings produce one row.
func (r *Repository) LogTemporary(ctx context.Context, userID string, scheduleID int64, logDate string, at time.Time) (Outcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, store.Wrap("log entry begin", err)
	}
	defer tx.Rollback()

	existing, err := existingStatus(ctx, tx, userID, scheduleID, logDate)
	if err != nil {
		return 0, err
	}
	if existing != "" {
		return outcomeFor(existing), nil
	}
	if r.beforeInsert != nil {
		if err := r.beforeInsert(ctx, tx); err != nil {
			return 0, store.Wrap("log entry insert", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_log (id, user_id, schedule_id, log_date, status, log_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, schedule_id, log_date) DO NOTHING
	`, uuid.NewString(), userID, scheduleID, logDate, StatusTemporary, at.UTC())
	if err != nil {
		return 0, store.Wrap("log entry insert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.Wrap("log entry insert", err)
	}
	if n == 0 {
		// lost the race to a concurrent sighting; report what it wrote
		existing, err := existingStatus(ctx, tx, userID, scheduleID, logDate)
		if err != nil {
			return 0, err
		}
		if existing == "" {
			existing = StatusTemporary
		}
		return outcomeFor(existing), store.Wrap("log entry commit", tx.Commit())
	}
	if err := tx.Commit(); err != nil {
		return 0, store.Wrap("log entry commit", err)
	}
	return LoggedTemporary, nil
}

func existingStatus(ctx context.Context, tx *sql.Tx, userID string, scheduleID int64, logDate string) (string, error) {
	var status string
	err := tx.QueryRowContext(ctx, `
		SELECT status FROM attendance_log
		WHERE user_id = $1 AND schedule_id = $2 AND log_date = $3
	`, userID, scheduleID, logDate).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", store.Wrap("log entry lookup", err)
	}
	return status, nil
}

func outcomeFor(status string) Outcome {
	if status == StatusFinal {
		return AlreadyConfirmed
	}
	return AlreadyTemporary
}

// Finalize moves every temporary row of the schedule on logDate to final and
// returns how many rows changed.
func (r *Repository) Finalize(ctx context.Context, scheduleID int64, logDate string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, store.Wrap("finalize begin", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE attendance_log
		SET status = $1
		WHERE schedule_id = $2 AND log_date = $3 AND status = $4
	`, StatusFinal, scheduleID, logDate, StatusTemporary)
	if err != nil {
		return 0, store.Wrap("finalize", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.Wrap("finalize", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, store.Wrap("finalize commit", err)
	}
	return n, nil
}

// ListForDate returns the day's rows newest first.
func (r *Repository) ListForDate(ctx context.Context, logDate string) ([]StatusRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT al.user_id, al.schedule_id, al.status, al.log_time, c.class_code
		FROM attendance_log al
		JOIN schedules s ON al.schedule_id = s.schedule_id
		JOIN classes c ON s.class_id = c.class_id
		WHERE al.log_date = $1
		ORDER BY al.log_time DESC, al.id DESC
	`, logDate)
	if err != nil {
		return nil, store.Wrap("list attendance", err)
	}
	defer rows.Close()

	res := []StatusRow{}
	for rows.Next() {
		var row StatusRow
		if err := rows.Scan(&row.UserID, &row.ScheduleID, &row.Status, &row.LogTime, &row.ClassCode); err != nil {
			return nil, store.Wrap("scan attendance", err)
		}
		res = append(res, row)
	}
	return res, store.Wrap("list attendance", rows.Err())
}
