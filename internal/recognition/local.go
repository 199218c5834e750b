package recognition

import (
	"context"
	"errors"
	"net/http"

	"smartattendance/internal/apiclient"
	"smartattendance/internal/attendance"
	"smartattendance/internal/session"
)

// Local dispatches sightings to a session controller and recorder in the same
// process. Replies carry the status codes and messages the HTTP API would
// answer with.
type Local struct {
	sessions *session.Controller
	recorder *attendance.Recorder
}

// NewLocal creates an in-process dispatcher.
func NewLocal(sessions *session.Controller, recorder *attendance.Recorder) *Local {
	return &Local{sessions: sessions, recorder: recorder}
}

func (l *Local) StartClass(ctx context.Context, facultyID string) (apiclient.Reply, error) {
	res, err := l.sessions.OnFacultySeen(ctx, facultyID)
	if err != nil {
		return apiclient.Reply{}, err
	}
	return apiclient.Reply{StatusCode: http.StatusOK, Message: res.Message()}, nil
}

func (l *Local) LogStudentEntry(ctx context.Context, userID string) (apiclient.Reply, error) {
	scheduleID, _ := l.sessions.ActiveScheduleID()
	out, err := l.recorder.LogStudentEntry(ctx, userID, scheduleID)
	if errors.Is(err, attendance.ErrNoActiveSession) {
		return apiclient.Reply{StatusCode: http.StatusOK, Message: "No active class session"}, nil
	}
	if err != nil {
		return apiclient.Reply{}, err
	}
	code := http.StatusOK
	if out.Created() {
		code = http.StatusCreated
	}
	return apiclient.Reply{StatusCode: code, Message: out.Message(userID, scheduleID)}, nil
}
