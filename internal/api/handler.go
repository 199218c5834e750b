package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smartattendance/internal/attendance"
	"smartattendance/internal/clock"
	"smartattendance/internal/cloudinary"
	"smartattendance/internal/logger"
	"smartattendance/internal/queue"
	"smartattendance/internal/schedule"
	"smartattendance/internal/session"
	"smartattendance/internal/store"
	"smartattendance/internal/timer"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Uploader stores a face crop and returns where it can be fetched.
type Uploader interface {
	UploadBase64(ctx context.Context, data string) (*cloudinary.UploadResult, error)
	UploadBytes(ctx context.Context, data []byte, filename string) (*cloudinary.UploadResult, error)
}

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) bool

// Deps wires a Handler. Frames, Uploader and Probes are optional.
type Deps struct {
	Sessions  *session.Controller
	Recorder  *attendance.Recorder
	Schedules *schedule.Resolver
	Timers    *timer.Manager
	Frames    queue.Queue
	Uploader  Uploader
	Clock     clock.Clock
	Probes    map[string]Probe
	Log       *zap.Logger
}

// Handler serves the attendance HTTP API.
type Handler struct {
	sessions  *session.Controller
	recorder  *attendance.Recorder
	schedules *schedule.Resolver
	timers    *timer.Manager
	frames    queue.Queue
	uploader  Uploader
	clock     clock.Clock
	probes    map[string]Probe
	log       *zap.Logger
}

// NewHandler creates a Handler from d.
func NewHandler(d Deps) *Handler {
	return &Handler{
		sessions:  d.Sessions,
		recorder:  d.Recorder,
		schedules: d.Schedules,
		timers:    d.Timers,
		frames:    d.Frames,
		uploader:  d.Uploader,
		clock:     d.Clock,
		probes:    d.Probes,
		log:       logger.OrNop(d.Log),
	}
}

// StartClass handles a liveness-verified faculty sighting.
func (h *Handler) StartClass(c *gin.Context) {
	var req struct {
		FacultyID string `json:"faculty_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "faculty_id is required"})
		return
	}

	res, err := h.sessions.OnFacultySeen(c.Request.Context(), req.FacultyID)
	if err != nil {
		h.fail(c, "start_class", err)
		return
	}
	body := gin.H{"message": res.Message(), "outcome": res.Outcome.String()}
	if res.Outcome != session.NoSchedule {
		body["schedule_id"] = res.ScheduleID
	}
	c.JSON(http.StatusOK, body)
}

// LogStudentEntry handles a liveness-verified student sighting.
func (h *Handler) LogStudentEntry(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	scheduleID, _ := h.sessions.ActiveScheduleID()
	out, err := h.recorder.LogStudentEntry(c.Request.Context(), req.UserID, scheduleID)
	switch {
	case errors.Is(err, attendance.ErrNoActiveSession):
		c.JSON(http.StatusOK, gin.H{"message": "No active class session"})
		return
	case err != nil:
		h.fail(c, "log_student_entry", err)
		return
	}

	if out.Created() {
		c.JSON(http.StatusCreated, gin.H{"message": out.Message(req.UserID, scheduleID), "schedule_id": scheduleID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": out.Message(req.UserID, scheduleID)})
}

// AssignSubstitute queues a substitute until the camera sees them.
func (h *Handler) AssignSubstitute(c *gin.Context) {
	var req struct {
		ScheduleID int64  `json:"schedule_id" binding:"required"`
		FacultyID  string `json:"faculty_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "schedule_id and faculty_id are required"})
		return
	}

	h.sessions.AssignSubstitute(req.ScheduleID, req.FacultyID)
	c.JSON(http.StatusOK, gin.H{"message": "Request received. Please look at the camera to confirm."})
}

// ConfirmAttendance finalizes a schedule without waiting for its countdown.
func (h *Handler) ConfirmAttendance(c *gin.Context) {
	var req struct {
		ScheduleID int64 `json:"schedule_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "schedule_id is required"})
		return
	}

	n, err := h.recorder.Confirm(c.Request.Context(), req.ScheduleID)
	if err != nil {
		h.fail(c, "confirm_attendance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   fmt.Sprintf("Schedule %d confirmed. %d students finalized.", req.ScheduleID, n),
		"finalized": n,
	})
}

// Status lists today's attendance, newest first.
func (h *Handler) Status(c *gin.Context) {
	rows, err := h.recorder.Status(c.Request.Context())
	if err != nil {
		h.fail(c, "status", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ExportStatus downloads today's attendance as a workbook.
func (h *Handler) ExportStatus(c *gin.Context) {
	buf, name, err := h.recorder.ExportToday(c.Request.Context())
	if err != nil {
		h.fail(c, "export_status", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Schedules lists today's schedules that have not ended yet.
func (h *Handler) Schedules(c *gin.Context) {
	views, err := h.schedules.ListToday(c.Request.Context())
	if err != nil {
		h.fail(c, "get_schedules", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// CurrentSession reports the active session.
func (h *Handler) CurrentSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.Status())
}

// Timers lists armed auto-finalize countdowns.
func (h *Handler) Timers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"timers": h.timers.Snapshot()})
}

// SubmitFrame queues a camera frame for the recognizer. Regions are image
// URLs; base64 images and multipart image files are uploaded first.
func (h *Handler) SubmitFrame(c *gin.Context) {
	var (
		req struct {
			DeviceID string   `json:"device_id"`
			Regions  []string `json:"regions"`
			Images   []string `json:"images"`
		}
		files []*multipart.FileHeader
	)
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
			return
		}
		req.DeviceID = c.PostForm("device_id")
		req.Regions = form.Value["regions"]
		files = form.File["images"]
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id is required"})
		return
	}
	if req.DeviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id is required"})
		return
	}
	if len(req.Regions) == 0 && len(req.Images) == 0 && len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide regions or images"})
		return
	}
	if h.frames == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "frame queue not configured"})
		return
	}
	if (len(req.Images) > 0 || len(files) > 0) && h.uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return
	}

	ctx := c.Request.Context()
	regions := append([]string(nil), req.Regions...)
	for _, img := range req.Images {
		res, err := h.uploader.UploadBase64(ctx, img)
		if err != nil {
			h.uploadFailed(c, req.DeviceID, err)
			return
		}
		regions = append(regions, res.SecureURL)
	}
	for _, fh := range files {
		data, err := readFile(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image " + fh.Filename})
			return
		}
		res, err := h.uploader.UploadBytes(ctx, data, fh.Filename)
		if err != nil {
			h.uploadFailed(c, req.DeviceID, err)
			return
		}
		regions = append(regions, res.SecureURL)
	}

	f := queue.NewFrame(req.DeviceID, regions, h.clock.Now())
	if err := h.frames.Publish(ctx, f); err != nil {
		h.log.Error("queue publish failed", zap.String("frame_id", f.ID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "frame queue unavailable"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"frame_id": f.ID, "regions": len(regions)})
}

func (h *Handler) uploadFailed(c *gin.Context, deviceID string, err error) {
	h.log.Error("face crop upload failed", zap.String("device_id", deviceID), zap.Error(err))
	c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Health reports dependency status.
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	code := http.StatusOK
	for name, probe := range h.probes {
		ok := probe(c.Request.Context())
		body[name] = ok
		if !ok {
			body["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, body)
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	fields := []zap.Field{zap.String("op", op), zap.Error(err)}
	if store.IsError(err) {
		h.log.Error("store operation failed", fields...)
	} else {
		h.log.Error("request failed", fields...)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
