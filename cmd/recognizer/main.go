package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"smartattendance/internal/apiclient"
	"smartattendance/internal/auth"
	"smartattendance/internal/config"
	"smartattendance/internal/faceclient"
	"smartattendance/internal/liveness"
	"smartattendance/internal/logger"
	"smartattendance/internal/queue"
	"smartattendance/internal/recognition"
	"smartattendance/internal/store"
)

// Recognizer consumes camera frames, runs face identification and liveness,
// and reports verified sightings to the attendance API.
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

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend != "redis" {
		zl.Fatal("the recognizer reads frames from redis; set QUEUE_BACKEND=redis", zap.String("queue_backend", cfg.QueueBackend))
	}
	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	frames := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey, zl)

	face := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip, cfg.MatchThreshold)
	face.SkipIdentity = cfg.FaceSkipIdentity

	// Check face service health on startup
	if !cfg.FaceSkip {
		if err := face.Health(ctx); err != nil {
			zl.Warn("face service not available; regions are skipped until it recovers", zap.Error(err))
		} else {
			zl.Info("face service connected", zap.String("url", cfg.FaceServiceURL))
		}
	}

	var tokens apiclient.TokenSource
	if cfg.RecognizerAuth {
		tokens = recognizerToken(cfg)
	}
	client := apiclient.New(cfg.APIURL, tokens)

	verdicts := zl.Named("liveness")
	votes := liveness.New(cfg.LivenessWindow, cfg.LivenessThreshold,
		liveness.WithObserver(func(identity string, v liveness.Verdict) {
			verdicts.Debug("liveness verdict", zap.String("identity", identity), zap.Stringer("verdict", v))
		}))
	pipeline := recognition.New(face, votes, client, cfg.RecognizerConcurrency, zl.Named("recognition"))

	metricsSrv := &http.Server{Addr: ":" + cfg.RecognizerMetricsPort, Handler: promhttp.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Warn("metrics listener failed", zap.Error(err))
		}
	}()

	messages, err := frames.Consume(ctx)
	if err != nil {
		zl.Fatal("queue consume init failed", zap.Error(err))
	}

	zl.Info("recognizer started, waiting for frames",
		zap.Int("liveness_window", cfg.LivenessWindow), zap.Int("liveness_threshold", cfg.LivenessThreshold))
	if err := pipeline.Run(ctx, messages); err != nil && !errors.Is(err, context.Canceled) {
		zl.Error("recognizer stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	zl.Info("recognizer stopped")
}

// recognizerToken mints tokens from the shared signing key, renewing a minute
// before expiry.
func recognizerToken(cfg config.App) apiclient.TokenSource {
	var (
		mu      sync.Mutex
		current auth.Token
	)
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if time.Until(current.ExpiresAt) > time.Minute {
			return current.AccessToken, nil
		}
		tok, err := auth.Issue("recognizer", auth.RoleRecognizer, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			return "", err
		}
		current = tok
		return tok.AccessToken, nil
	}
}
