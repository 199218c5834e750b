package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartattendance/internal/clock"
	"smartattendance/internal/schedule"
	"smartattendance/internal/testutil"
	"smartattendance/internal/timer"
)

type stubResolver struct {
	mu        sync.Mutex
	schedules map[string]int64
	err       error
	lookups   int
}

func (s *stubResolver) FindActive(_ context.Context, facultyID string) (schedule.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.err != nil {
		return schedule.Schedule{}, s.err
	}
	id, ok := s.schedules[facultyID]
	if !ok {
		return schedule.Schedule{}, schedule.ErrNotFound
	}
	return schedule.Schedule{ScheduleID: id, FacultyID: facultyID}, nil
}

type fakeTimers struct {
	mu    sync.Mutex
	armed map[int64]int
}

func (f *fakeTimers) Ensure(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armed == nil {
		f.armed = map[int64]int{}
	}
	f.armed[id]++
	return f.armed[id] == 1
}

func (f *fakeTimers) calls(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.armed[id]
}

type recordingPolicy struct {
	switches [][2]Session
}

func (p *recordingPolicy) OnSwitch(prev, next Session) {
	p.switches = append(p.switches, [2]Session{prev, next})
}

func newController(t *testing.T) (*Controller, *stubResolver, *fakeTimers) {
	t.Helper()
	r := &stubResolver{schedules: map[string]int64{"faculty_ada": 10, "faculty_bob": 11}}
	tm := &fakeTimers{}
	return NewController(r, tm), r, tm
}

func TestOnFacultySeen_StartsScheduledClass(t *testing.T) {
	c, _, tm := newController(t)

	res, err := c.OnFacultySeen(context.Background(), "faculty_ada")
	require.NoError(t, err)
	assert.Equal(t, Started, res.Outcome)
	assert.Equal(t, int64(10), res.ScheduleID)
	assert.Equal(t, "Class 10 started. Auto-finalize timer running.", res.Message())
	assert.Equal(t, 1, tm.calls(10))

	st := c.Status()
	assert.True(t, st.Active)
	assert.Equal(t, "faculty_ada", st.FacultyID)
	require.NotNil(t, st.ScheduleID)
	assert.Equal(t, int64(10), *st.ScheduleID)
}

func TestOnFacultySeen_SameFacultyIsInSession(t *testing.T) {
	c, r, tm := newController(t)
	ctx := context.Background()

	_, err := c.OnFacultySeen(ctx, "faculty_ada")
	require.NoError(t, err)
	res, err := c.OnFacultySeen(ctx, "faculty_ada")
	require.NoError(t, err)

	assert.Equal(t, InSession, res.Outcome)
	assert.Equal(t, "Class 10 is in session. Timer is running.", res.Message())
	assert.Equal(t, 1, tm.calls(10))
	assert.Equal(t, 1, r.lookups, "active faculty needs no lookup")
}

func TestOnFacultySeen_NoScheduleChangesNothing(t *testing.T) {
	c, _, tm := newController(t)

	res, err := c.OnFacultySeen(context.Background(), "faculty_zed")
	require.NoError(t, err)
	assert.Equal(t, NoSchedule, res.Outcome)
	assert.Equal(t, "Faculty faculty_zed seen, but has no active schedule. No action taken.", res.Message())
	assert.False(t, c.Status().Active)
	assert.Empty(t, tm.armed)
}

func TestOnFacultySeen_NoScheduleKeepsCurrentSession(t *testing.T) {
	c, _, _ := newController(t)
	ctx := context.Background()

	_, err := c.OnFacultySeen(ctx, "faculty_ada")
	require.NoError(t, err)
	_, err = c.OnFacultySeen(ctx, "faculty_zed")
	require.NoError(t, err)

	id, ok := c.ActiveScheduleID()
	assert.True(t, ok)
	assert.Equal(t, int64(10), id)
}

func TestOnFacultySeen_SwitchLeavesPreviousTimerAndResumes(t *testing.T) {
	c, _, tm := newController(t)
	ctx := context.Background()

	_, err := c.OnFacultySeen(ctx, "faculty_ada")
	require.NoError(t, err)
	_, err = c.OnFacultySeen(ctx, "faculty_bob")
	require.NoError(t, err)

	id, _ := c.ActiveScheduleID()
	assert.Equal(t, int64(11), id)

	// back to ada while her countdown is still armed
	res, err := c.OnFacultySeen(ctx, "faculty_ada")
	require.NoError(t, err)
	assert.Equal(t, Resumed, res.Outcome)
	assert.Equal(t, "Class 10 resumed. Timer already running.", res.Message())
	assert.Equal(t, 2, tm.calls(10))
	assert.Equal(t, 1, tm.calls(11))
}

func TestOnFacultySeen_SubstituteTakesPrecedence(t *testing.T) {
	c, r, _ := newController(t)
	ctx := context.Background()

	// bob is regularly scheduled for 11 but has been assigned to cover 10
	c.AssignSubstitute(10, "faculty_bob")
	res, err := c.OnFacultySeen(ctx, "faculty_bob")
	require.NoError(t, err)

	assert.Equal(t, Started, res.Outcome)
	assert.Equal(t, int64(10), res.ScheduleID)
	assert.Zero(t, r.lookups)
	_, pending := c.Pending()
	assert.False(t, pending, "pending request is consumed")
}

func TestOnFacultySeen_SubstituteWithoutSchedule(t *testing.T) {
	c, _, _ := newController(t)

	c.AssignSubstitute(12, "faculty_sub")
	res, err := c.OnFacultySeen(context.Background(), "faculty_sub")
	require.NoError(t, err)
	assert.Equal(t, Started, res.Outcome)
	assert.Equal(t, int64(12), res.ScheduleID)
}

func TestOnFacultySeen_OtherFacultyLeavesPendingAlone(t *testing.T) {
	c, _, _ := newController(t)
	ctx := context.Background()

	c.AssignSubstitute(12, "faculty_sub")
	_, err := c.OnFacultySeen(ctx, "faculty_ada")
	require.NoError(t, err)

	p, ok := c.Pending()
	require.True(t, ok)
	assert.Equal(t, Session{ScheduleID: 12, FacultyID: "faculty_sub"}, p)
}

func TestAssignSubstitute_LastRequestWins(t *testing.T) {
	c, _, _ := newController(t)

	c.AssignSubstitute(12, "faculty_x")
	c.AssignSubstitute(13, "faculty_y")

	res, err := c.OnFacultySeen(context.Background(), "faculty_x")
	require.NoError(t, err)
	assert.Equal(t, NoSchedule, res.Outcome, "the first request was overwritten")

	res, err = c.OnFacultySeen(context.Background(), "faculty_y")
	require.NoError(t, err)
	assert.Equal(t, int64(13), res.ScheduleID)
}

func TestAssignSubstitute_DoesNotTouchActiveSession(t *testing.T) {
	c, _, _ := newController(t)
	_, err := c.OnFacultySeen(context.Background(), "faculty_ada")
	require.NoError(t, err)

	c.AssignSubstitute(12, "faculty_sub")
	id, _ := c.ActiveScheduleID()
	assert.Equal(t, int64(10), id)
}

func TestOnFacultySeen_ResolverErrorPropagates(t *testing.T) {
	c, r, _ := newController(t)
	r.err = errors.New("connection refused")

	_, err := c.OnFacultySeen(context.Background(), "faculty_ada")
	assert.EqualError(t, err, "connection refused")
	assert.False(t, c.Status().Active)
}

func TestWithSwitchPolicy_SeesScheduleChanges(t *testing.T) {
	r := &stubResolver{schedules: map[string]int64{"faculty_ada": 10, "faculty_bob": 11}}
	p := &recordingPolicy{}
	c := NewController(r, &fakeTimers{}, WithSwitchPolicy(p))
	ctx := context.Background()

	for _, f := range []string{"faculty_ada", "faculty_ada", "faculty_bob"} {
		_, err := c.OnFacultySeen(ctx, f)
		require.NoError(t, err)
	}

	require.Len(t, p.switches, 1)
	assert.Equal(t, int64(10), p.switches[0][0].ScheduleID)
	assert.Equal(t, int64(11), p.switches[0][1].ScheduleID)
}

func TestStatus_EmptyController(t *testing.T) {
	c, _, _ := newController(t)
	st := c.Status()
	assert.False(t, st.Active)
	assert.Empty(t, st.FacultyID)
	assert.Nil(t, st.ScheduleID)
}

func TestController_ConcurrentSightingsAndReads(t *testing.T) {
	c, _, tm := newController(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := c.OnFacultySeen(ctx, "faculty_ada")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			st := c.Status()
			if st.Active {
				assert.Equal(t, "faculty_ada", st.FacultyID)
				assert.Equal(t, int64(10), *st.ScheduleID)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, tm.calls(10), "only the adopting sighting arms the countdown")
}

func TestController_WithTimerManager(t *testing.T) {
	r := &stubResolver{schedules: map[string]int64{"faculty_ada": 10}}
	fc := clock.NewFake(testutil.Monday0930)
	var mu sync.Mutex
	var finalized []int64
	m := timer.New(fc, 30*time.Second, func(_ context.Context, id int64) (int64, error) {
		mu.Lock()
		finalized = append(finalized, id)
		mu.Unlock()
		return 0, nil
	}, nil)
	c := NewController(r, m)
	ctx := context.Background()

	res, err := c.OnFacultySeen(ctx, "faculty_ada")
	require.NoError(t, err)
	assert.Equal(t, Started, res.Outcome)

	m.FireDue(fc.Advance(30 * time.Second))
	m.Wait()
	assert.Equal(t, []int64{10}, finalized)

	// the session stays active after auto-finalize
	assert.True(t, c.Status().Active)
}
