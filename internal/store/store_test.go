package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrate_SQLiteIsIdempotent(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db, zap.NewNop()))
	require.NoError(t, Migrate(ctx, db, zap.NewNop()))

	for _, table := range []string{"classes", "schedules", "attendance_log"} {
		var n int
		err := db.Client.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = $1`, table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
	assert.True(t, db.Healthy(ctx))
}

func TestMigrate_EnforcesUniqueAttendance(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db, zap.NewNop()))

	_, err = db.Client.ExecContext(ctx, `INSERT INTO classes (class_id, class_code, class_name) VALUES (1, 'CS101', 'Intro')`)
	require.NoError(t, err)
	_, err = db.Client.ExecContext(ctx, `INSERT INTO schedules (schedule_id, class_id, faculty_id, day_of_week, start_time, end_time)
		VALUES (10, 1, 'faculty_a', 2, '09:00:00', '10:00:00')`)
	require.NoError(t, err)

	insert := `INSERT INTO attendance_log (id, user_id, schedule_id, log_date, status, log_time)
		VALUES ($1, 'student_1', 10, '2026-10-12', 'temporary_present', CURRENT_TIMESTAMP)`
	_, err = db.Client.ExecContext(ctx, insert, "a")
	require.NoError(t, err)
	_, err = db.Client.ExecContext(ctx, insert, "b")
	assert.Error(t, err, "second row for the same user/schedule/day must be rejected")
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mysql", "")
	assert.Error(t, err)
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap("op", nil))

	base := errors.New("connection refused")
	err := Wrap("find schedule", base)
	assert.True(t, IsError(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "store: find schedule: connection refused", err.Error())

	wrapped := fmt.Errorf("resolver: %w", err)
	assert.True(t, IsError(wrapped))
	assert.Same(t, err, Wrap("outer", err), "already-tagged errors are not double wrapped")
	assert.False(t, IsError(base))
}
