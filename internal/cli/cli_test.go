package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartattendance/internal/auth"
	"smartattendance/internal/store"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func sqliteEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "attendance.db")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DATABASE_URL", path)
	t.Setenv("JWT_SIGNING_KEY", "cli-test-key")
	return path
}

func TestMigrateAndSeed(t *testing.T) {
	path := sqliteEnv(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date (sqlite3)")

	seedPath := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(`
classes:
  - {class_id: 1, class_code: CS101, class_name: Intro to Programming}
  - {class_id: 2, class_code: MA201, class_name: Linear Algebra}
schedules:
  - {schedule_id: 10, class_id: 1, faculty_id: faculty_ada, day_of_week: 2, start_time: "09:00", end_time: "10:00"}
  - {schedule_id: 11, class_id: 2, faculty_id: faculty_bob, day_of_week: 2, start_time: "10:00", end_time: "11:30"}
`), 0o600))

	out, err = run(t, "seed", seedPath)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 2 classes, 2 schedules")

	// seeding again is an upsert
	_, err = run(t, "seed", seedPath)
	require.NoError(t, err)

	db, err := store.OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.Client.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM schedules`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestSeed_BadFile(t *testing.T) {
	sqliteEnv(t)
	seedPath := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte("schedules:\n  - {schedule_id: 1, class_id: 3}\n"), 0o600))

	_, err := run(t, "seed", seedPath)
	assert.Error(t, err)

	_, err = run(t, "seed")
	assert.Error(t, err, "file argument is required")
}

func TestToken(t *testing.T) {
	sqliteEnv(t)

	out, err := run(t, "token", "--subject", "camera-7", "--ttl", "5m")
	require.NoError(t, err)

	claims, err := auth.Parse(strings.TrimSpace(out), "cli-test-key", "smart-attendance")
	require.NoError(t, err)
	assert.Equal(t, "camera-7", claims.Subject)
	assert.Equal(t, auth.RoleRecognizer, claims.Role)
}
