// Package server exposes the aggregation engine as a small JSON API.
// Every aggregation endpoint returns a well-formed shape even when no
// data exists; only store-level failures surface as request errors.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jgoulah/meterwatch/internal/config"
	"github.com/jgoulah/meterwatch/internal/notifier"
	"github.com/jgoulah/meterwatch/internal/stats"
	"github.com/jgoulah/meterwatch/pkg/models"
)

// FetchFunc scrapes one device and stores the resulting reading
type FetchFunc func(ctx context.Context, deviceID string) (*models.Reading, error)

// Server is the HTTP API over the aggregation engine
type Server struct {
	cfg      *config.Config
	agg      *stats.Aggregator
	reporter *notifier.Reporter
	fetch    FetchFunc
	router   *gin.Engine
	log      *logrus.Entry
}

// New builds the server and its routes
func New(cfg *config.Config, agg *stats.Aggregator, reporter *notifier.Reporter, fetch FetchFunc) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:      cfg,
		agg:      agg,
		reporter: reporter,
		fetch:    fetch,
		router:   gin.New(),
		log:      logrus.WithField("component", "server"),
	}

	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/data", s.handleData)
	s.router.GET("/kpi", s.handleKPI)
	s.router.GET("/period_kpi", s.handlePeriodKPI)
	s.router.GET("/recharge_history", s.handleRechargeHistory)
	s.router.GET("/fetch", s.handleFetch)
	s.router.GET("/test_notification", s.handleTestNotification)
}

// Router exposes the gin engine (used in tests)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves the API until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.GetListenAddr(),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.log.WithField("addr", srv.Addr).Info("http server started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// deviceOrDefault resolves the device_id query parameter, falling back
// to the first configured device. Empty means no device is available.
func (s *Server) deviceOrDefault(c *gin.Context) string {
	if id := c.Query("device_id"); id != "" {
		return id
	}
	if d := s.cfg.FirstDevice(); d != nil {
		return d.ID
	}
	return ""
}
