// Package api serves the ledger over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"luckystake/auth"
	"luckystake/metrics"
	"luckystake/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Services bundles the ledger operations exposed over HTTP
type Services struct {
	Ledger   service.LedgerService
	Pools    service.PoolService
	Accounts service.AccountService
	Yield    service.YieldService
	Draws    service.DrawService
}

// Options configures a Server. WebSocket and Metrics are optional.
type Options struct {
	Services      Services
	Authenticator *auth.Authenticator
	AdminKey      string
	WebSocket     http.Handler
	Metrics       *metrics.Collector
	Production    bool
}

// Server owns the router and its handlers
type Server struct {
	services  Services
	auth      *auth.Authenticator
	adminKey  string
	router    *gin.Engine
	startedAt time.Time
}

// NewServer builds the router with every route registered
func NewServer(opts Options) *Server {
	if opts.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	if opts.Metrics != nil {
		router.Use(opts.Metrics.GinMiddleware())
	}

	s := &Server{
		services:  opts.Services,
		auth:      opts.Authenticator,
		adminKey:  opts.AdminKey,
		router:    router,
		startedAt: time.Now().UTC(),
	}
	s.registerRoutes(opts)
	return s
}

func (s *Server) registerRoutes(opts Options) {
	r := s.router

	r.GET("/health", s.health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	if opts.WebSocket != nil {
		r.GET("/ws", gin.WrapH(opts.WebSocket))
	}

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/challenge", s.challenge)
		authGroup.POST("/verify", s.verify)
		authGroup.POST("/logout", s.logout)
		authGroup.GET("/me", s.requireAuth(), s.me)
	}

	pools := api.Group("/pools")
	{
		pools.GET("", s.listPools)
		pools.GET("/:id", s.getPool)
		pools.GET("/:id/my-position", s.requireAuth(), s.myPosition)
	}

	deposits := api.Group("/deposits", s.requireAuth())
	{
		deposits.POST("", s.createDeposit)
		deposits.GET("/my", s.myDeposits)
		deposits.POST("/:id/withdraw", s.withdraw)
	}

	prizes := api.Group("/prizes")
	{
		prizes.GET("", s.recentPrizes)
		prizes.GET("/my", s.requireAuth(), s.myPrizes)
		prizes.POST("/draw", s.requireAdmin(), s.draw)
		prizes.POST("/accrue-yield", s.requireAdmin(), s.accrueYield)
		prizes.POST("/:id/settle", s.requireAdmin(), s.settlePrize)
	}

	users := api.Group("/users")
	{
		users.GET("/me", s.requireAuth(), s.me)
		users.PATCH("/me/settings", s.requireAuth(), s.updateSettings)
		users.GET("/leaderboard", s.leaderboard)
	}
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}
