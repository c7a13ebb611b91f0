// Command theatre runs the WebRTC signaling and room coordination
// service: the HTTP/WebSocket surface, the room registry, and the
// startup-loaded avatar catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/concerto-app/theatre/internal/catalog"
	"github.com/concerto-app/theatre/internal/config"
	"github.com/concerto-app/theatre/internal/health"
	"github.com/concerto-app/theatre/internal/logging"
	"github.com/concerto-app/theatre/internal/middleware"
	"github.com/concerto-app/theatre/internal/server"
	"github.com/concerto-app/theatre/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	for _, path := range []string{".env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("theatre: %w", err)
	}

	var (
		host = flag.String("host", cfg.Host, "listen host")
		port = flag.Int("port", cfg.Port, "listen port")
	)
	flag.Parse()
	cfg.Host, cfg.Port = *host, *port

	if err := logging.Initialize(cfg.Development); err != nil {
		return fmt.Errorf("theatre: initialize logging: %w", err)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("theatre: %w", err)
	}

	registry := server.New(cat, time.Duration(cfg.IdleRoomSeconds)*time.Second)
	connectHandler := transport.NewHandler(registry)
	healthHandler := health.NewHandler(func() bool { return true })

	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	router.Use(cors.New(corsConfig))

	router.GET("/entries", cat.Handler())
	router.GET("/connect", connectHandler.ServeWS)
	router.GET("/healthz", healthHandler.Liveness)
	router.GET("/readyz", healthHandler.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logging.Info(context.Background(), "theatre listening", zap.String("addr", cfg.Addr()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("theatre: bind %s: %w", cfg.Addr(), err)
		}
		return nil
	case <-quit:
	}
	logging.Info(context.Background(), "shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error(context.Background(), "graceful shutdown failed", zap.Error(err))
	}
	registry.Shutdown()

	return nil
}
