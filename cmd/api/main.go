package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pathak/internal/account"
	"pathak/internal/attendance"
	"pathak/internal/auth"
	"pathak/internal/backend"
	"pathak/internal/config"
	"pathak/internal/geo"
	"pathak/internal/handler"
	"pathak/internal/httpmiddleware"
	"pathak/internal/logging"
	"pathak/internal/parikshan"
	"pathak/internal/queue"
	"pathak/internal/store"
	"pathak/internal/worker"
)

func main() {
	cfg := config.Load()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	host, _ := os.Hostname()
	logger := logging.New(nil, logging.Options{
		RollbarToken: cfg.RollbarToken,
		Env:          cfg.Env,
		CodeVersion:  cfg.CodeVersion,
		Host:         host,
	})
	defer logger.Close()

	ctx := context.Background()
	repos, err := backend.OpenRepos(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.Close()

	q, err := backend.OpenQueue(cfg)
	if err != nil {
		return err
	}
	defer q.Close()

	accounts := account.NewService(repos.Accounts, cfg.BcryptCost)
	att := attendance.NewService(repos.Attendance, accounts, attendance.Options{
		SessionTTL: cfg.SessionTTL,
		CodeLength: cfg.SessionCodeLength,
		Gate: geo.Gate{
			Enabled:      cfg.GeofenceEnabled,
			Reference:    geo.Point{Lat: cfg.GeofenceLat, Lng: cfg.GeofenceLng},
			RadiusMeters: cfg.GeofenceRadius,
			Timeout:      cfg.LocationTimeout,
		},
		Notifier: queue.Notifier{Queue: q},
	})
	scores := parikshan.NewService(repos.Parikshan, accounts)

	// The in-memory queue has no other consumer, so drain it here.
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if cfg.QueueBackend == backend.QueueMemory {
		go func() {
			if err := worker.New(q, att, logger).Run(workerCtx); err != nil {
				logger.Error("in-process worker", err, nil)
			}
		}()
	}

	var limiter httpmiddleware.Limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	var limiterRedis *store.Redis
	if cfg.RateLimitRedis {
		limiterRedis = store.NewRedis(cfg.RedisAddr)
		defer limiterRedis.Close()
		limiter = httpmiddleware.NewRedisTokenBucket(limiterRedis.Client, cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	h := handler.New(handler.Deps{
		Accounts:   accounts,
		Attendance: att,
		Parikshan:  scores,
		Issuer: auth.Issuer{
			Name:       cfg.JWTIssuer,
			Key:        cfg.JWTSigningKey,
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
		},
		Identity: repos.Identity,
		Limiter:  limiter,
		Log:      logger,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition", "Retry-After"},
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		checks := map[string]bool{"store": repos.Healthy(c.Request.Context())}
		if rdb := q.Redis(); rdb != nil {
			checks["queue"] = rdb.Healthy(c.Request.Context())
		}
		if limiterRedis != nil {
			checks["ratelimit"] = limiterRedis.Healthy(c.Request.Context())
		}
		status := http.StatusOK
		body := gin.H{"status": "ok"}
		for name, healthy := range checks {
			body[name] = healthy
			if !healthy {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}
		c.JSON(status, body)
	})

	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s (store=%s queue=%s)", cfg.HTTPPort, cfg.StoreBackend, cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// Security headers middleware
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
