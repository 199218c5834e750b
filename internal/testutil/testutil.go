// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartattendance/internal/store"
)

// Monday 2026-10-12 09:30 UTC; day_of_week 2 in the store encoding.
var Monday0930 = time.Date(2026, 10, 12, 9, 30, 0, 0, time.UTC)

// NewDB returns a migrated in-memory SQLite database closed at test end.
func NewDB(t testing.TB) *store.DB {
	t.Helper()
	db, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(context.Background(), db, zap.NewNop()))
	return db
}

// Exec runs a statement and fails the test on error.
func Exec(t testing.TB, db *store.DB, query string, args ...any) {
	t.Helper()
	_, err := db.Client.ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
}

// AddClass inserts a class row.
func AddClass(t testing.TB, db *store.DB, id int64, code, name string) {
	t.Helper()
	Exec(t, db, `INSERT INTO classes (class_id, class_code, class_name) VALUES ($1, $2, $3)`, id, code, name)
}

// AddSchedule inserts a schedule row.
func AddSchedule(t testing.TB, db *store.DB, id, classID int64, facultyID string, day int, start, end string) {
	t.Helper()
	Exec(t, db, `INSERT INTO schedules (schedule_id, class_id, faculty_id, day_of_week, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6)`, id, classID, facultyID, day, start, end)
}
