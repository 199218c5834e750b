package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartattendance/internal/auth"
	"smartattendance/internal/httpmiddleware"
)

// RouterConfig controls the middleware stack.
type RouterConfig struct {
	SigningKey      string
	Issuer          string
	RecognizerAuth  bool
	RateLimitPerMin int
	AccessLog       bool
}

// NewRouter mounts h on a gin engine.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.AccessLog {
		r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
			SkipPaths: []string{"/healthz", "/metrics"},
		}))
	}
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:   []string{"Content-Disposition"},
		MaxAge:          24 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware(cfg.SigningKey, cfg.Issuer))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Health)

	// called by the recognizer once per verified identity
	recognition := r.Group("/")
	if cfg.RecognizerAuth {
		recognition.Use(auth.RequireRole(cfg.SigningKey, cfg.Issuer, auth.RoleRecognizer))
	}
	recognition.POST("/start_class", h.StartClass)
	recognition.POST("/log_student_entry_auto", h.LogStudentEntry)
	recognition.POST("/v1/frames", h.SubmitFrame)

	r.POST("/assign_substitute", h.AssignSubstitute)
	r.POST("/confirm_attendance", h.ConfirmAttendance)
	r.GET("/status", h.Status)
	r.GET("/status/export", h.ExportStatus)
	r.GET("/get_schedules", h.Schedules)
	r.GET("/current_session_status", h.CurrentSession)
	r.GET("/timers", h.Timers)

	return r
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
