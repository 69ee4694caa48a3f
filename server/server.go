package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/partsvault/approvalstack/config"
	"github.com/partsvault/approvalstack/internal/cron"
	er "github.com/partsvault/approvalstack/internal/errors"
	"github.com/partsvault/approvalstack/internal/logger"
	"github.com/partsvault/approvalstack/internal/repository"
	"github.com/partsvault/approvalstack/internal/tracing"
	"github.com/partsvault/approvalstack/services"
)

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	repositories *repository.Repositories
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config, db *gorm.DB) (*Server, error) {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		log.Fatalf("Could not initialize jaeger tracer: %s", err.Error())
	}
	opentracing.SetGlobalTracer(tracer)

	repos := repository.InitRepositories(db)

	svcs, err := services.InitServices(cfg, appLogger, repos)
	if err != nil {
		return nil, err
	}

	cronManager := cron.NewCronManager(cfg, appLogger, svcs.ConnectivityMonitor, svcs.MonitorService)

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	return &Server{
		config:       cfg,
		log:          appLogger,
		router:       router,
		services:     svcs,
		repositories: repos,
		cronManager:  cronManager,
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppConfig.APIPort,
			Handler: router,
		},
	}, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	status := s.router.Group("/status")
	if s.config.AppConfig.APIKey != "" {
		status.Use(s.apiKeyMiddleware())
	}
	status.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"monitor":      s.services.MonitorService.Status(),
			"connectivity": s.services.ConnectivityMonitor.Snapshot(),
		})
	})
}

func (s *Server) apiKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-API-KEY") != s.config.AppConfig.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		ext.Error.Set(span, true)
		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		s.log.Errorf("Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

// Run starts the monitor, the cron triggers and the HTTP endpoints, then
// blocks until a shutdown signal or a fatal monitor error. A reconnect
// exhaustion error propagates so the process exits non-zero and the process
// manager restarts it.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.registerRoutes()

	monitorErr := make(chan error, 1)
	go s.wrapGoroutine("mailbox_monitor", func() {
		monitorErr <- s.services.MonitorService.Run(ctx)
	})

	go s.wrapGoroutine("mailbox_watcher", func() {
		s.services.MailboxWatcher.Run(ctx)
	})

	s.cronManager.Start()

	go s.wrapGoroutine("http_server", func() {
		s.log.Infof("Starting HTTP server on :%s", s.config.AppConfig.APIPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP server error: %v", err)
		}
	})

	s.log.Info("approvalstack is now running")

	return s.waitForShutdown(cancel, monitorErr)
}

func (s *Server) waitForShutdown(cancel context.CancelFunc, monitorErr <-chan error) error {
	defer s.recoverWithJaeger("shutdown")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var fatal error

	select {
	case <-stop:
		s.log.Info("Shutdown signal received")
	case err := <-monitorErr:
		if err != nil {
			s.log.Errorf("Mailbox monitor failed: %v", err)
			if errors.Is(err, er.ErrReconnectAttemptsExhausted) {
				fatal = err
			}
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	s.cronManager.Stop()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("HTTP server shutdown error: %v", err)
	}

	if s.services.EventPublisher != nil {
		if err := s.services.EventPublisher.Close(); err != nil {
			s.log.Errorf("Event publisher shutdown error: %v", err)
		}
	}

	if s.tracerCloser != nil {
		s.tracerCloser.Close()
	}

	s.log.Info("Shutdown complete")
	return fatal
}
