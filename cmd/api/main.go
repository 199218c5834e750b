package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smartattendance/internal/api"
	"smartattendance/internal/attendance"
	"smartattendance/internal/clock"
	"smartattendance/internal/cloudinary"
	"smartattendance/internal/config"
	"smartattendance/internal/faceclient"
	"smartattendance/internal/liveness"
	"smartattendance/internal/logger"
	"smartattendance/internal/queue"
	"smartattendance/internal/recognition"
	"smartattendance/internal/schedule"
	"smartattendance/internal/session"
	"smartattendance/internal/store"
	"smartattendance/internal/timer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, zl); err != nil {
		zl.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, zl *zap.Logger) error {
	db, err := store.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.Migrate(ctx, db, zl); err != nil {
		return err
	}

	probes := map[string]api.Probe{"db": db.Healthy}

	var (
		frames queue.Queue
		local  *queue.InMemory
	)
	switch cfg.QueueBackend {
	case "memory":
		local = queue.NewInMemory(64)
		frames = local
	case "redis":
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		frames = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey, zl)
		probes["redis"] = redisClient.Healthy
	default:
		zl.Info("frame ingest disabled", zap.String("queue_backend", cfg.QueueBackend))
	}

	// Cloudinary client (nil when not configured)
	var uploader api.Uploader
	cdn := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	if cdn.Configured() {
		uploader = cdn
		zl.Info("cloudinary configured", zap.String("cloud", cfg.CloudinaryCloudName))
	} else {
		zl.Info("cloudinary not configured; base64 frames are rejected")
	}

	clk := clock.NewSystem(cfg.Location)
	recorder := attendance.NewRecorder(attendance.NewRepository(db.Client), clk, zl.Named("attendance"))
	resolver := schedule.NewResolver(schedule.NewRepository(db.Client), clk)
	timers := timer.New(clk, cfg.ConfirmationDelay, recorder.Confirm, zl.Named("timer"))
	sessions := session.NewController(resolver, timers, session.WithLogger(zl.Named("session")))

	// the in-memory queue has no other reader; recognize its frames here
	var recognizerDone <-chan struct{}
	if local != nil {
		recognizerDone, err = runLocalRecognizer(ctx, cfg, local, sessions, recorder, zl)
		if err != nil {
			return err
		}
	}

	h := api.NewHandler(api.Deps{
		Sessions:  sessions,
		Recorder:  recorder,
		Schedules: resolver,
		Timers:    timers,
		Frames:    frames,
		Uploader:  uploader,
		Clock:     clk,
		Probes:    probes,
		Log:       zl.Named("api"),
	})
	r := api.NewRouter(h, api.RouterConfig{
		SigningKey:      cfg.JWTSigningKey,
		Issuer:          cfg.JWTIssuer,
		RecognizerAuth:  cfg.RecognizerAuth,
		RateLimitPerMin: cfg.RateLimitPerMin,
		AccessLog:       true,
	})

	timerCtx, stopTimers := context.WithCancel(context.Background())
	defer stopTimers()
	go timers.Run(timerCtx, cfg.TimerResolution)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("starting server", zap.String("addr", srv.Addr),
			zap.String("db_driver", db.Driver), zap.Duration("confirmation_delay", cfg.ConfirmationDelay))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	zl.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("server forced shutdown", zap.Error(err))
	}

	if recognizerDone != nil {
		<-recognizerDone
	}

	// armed countdowns that have not fired are dropped; their rows stay temporary
	stopTimers()
	timers.Wait()
	if pending := timers.Snapshot(); len(pending) > 0 {
		zl.Warn("unfired auto-finalize timers dropped", zap.Int("count", len(pending)))
	}

	zl.Info("server exited")
	return nil
}

// runLocalRecognizer runs the recognition pipeline on frames until ctx is done,
// dispatching verified sightings straight to sessions and recorder.
func runLocalRecognizer(ctx context.Context, cfg config.App, frames *queue.InMemory,
	sessions *session.Controller, recorder *attendance.Recorder, zl *zap.Logger) (<-chan struct{}, error) {
	face := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip, cfg.MatchThreshold)
	face.SkipIdentity = cfg.FaceSkipIdentity
	if !cfg.FaceSkip {
		if err := face.Health(ctx); err != nil {
			zl.Warn("face service not available; regions are skipped until it recovers", zap.Error(err))
		}
	}

	votes := liveness.New(cfg.LivenessWindow, cfg.LivenessThreshold)
	pipeline := recognition.New(face, votes, recognition.NewLocal(sessions, recorder),
		cfg.RecognizerConcurrency, zl.Named("recognition"))

	messages, err := frames.Consume(ctx)
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := pipeline.Run(ctx, messages); err != nil && !errors.Is(err, context.Canceled) {
			zl.Error("in-process recognizer stopped", zap.Error(err))
		}
	}()
	zl.Info("in-process recognizer consuming frames",
		zap.Int("liveness_window", cfg.LivenessWindow), zap.Int("liveness_threshold", cfg.LivenessThreshold))
	return done, nil
}
