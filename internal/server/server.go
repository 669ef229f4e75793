// Package server hosts the console UI and its API: one-shot proxy, browser
// SSE relay, session downloads, liveness status, and metrics.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/cmr-tools/cmrconsole/config"
	"github.com/cmr-tools/cmrconsole/internal/agentapi"
	"github.com/cmr-tools/cmrconsole/internal/session"
)

// Server wires the console handlers to their collaborators.
type Server struct {
	cfg     *config.Config
	client  *agentapi.Client
	store   session.Store
	pinger  *agentapi.Pinger
	metrics *Metrics
	logger  *log.Logger
}

// New assembles a Server around an already-built backend client and session
// store; Run is the production entry point that constructs those from
// config.
func New(cfg *config.Config, client *agentapi.Client, store session.Store) *Server {
	metrics := NewMetrics()
	s := &Server{
		cfg:     cfg,
		client:  client,
		store:   store,
		metrics: metrics,
		logger:  log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
	}
	s.pinger = agentapi.NewPinger(client, cfg.Liveness.Interval, func(online bool) {
		if online {
			metrics.AgentOnline.Set(1)
		} else {
			metrics.AgentOnline.Set(0)
		}
	})
	return s
}

// Run builds all dependencies from config and serves until the process ends.
func Run(cfg *config.Config) error {
	client := agentapi.NewClient(cfg.Agent.BaseURL, cfg.Agent.Timeout,
		agentapi.WithRetryDelay(cfg.Agent.StreamRetry))

	var store session.Store
	switch cfg.Session.Store {
	case "redis":
		redisStore, err := session.NewRedisStore(context.Background(),
			cfg.Session.Redis.Addr, cfg.Session.Redis.Password,
			cfg.Session.Redis.DB, cfg.Session.Redis.DialTimeout, cfg.Session.TTL)
		if err != nil {
			return fmt.Errorf("session store: %w", err)
		}
		store = redisStore
	default:
		store = session.NewMemoryStore(cfg.Session.TTL)
	}

	s := New(cfg, client, store)
	go s.pinger.Run(context.Background())

	e := s.Echo()
	s.logger.Printf("console listening on %s (agent %s)", cfg.Server.Address, cfg.Agent.BaseURL)
	return e.Start(cfg.Server.Address)
}

// Echo builds the routing tree.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.cfg.Server.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	e.GET("/", s.page)
	api := e.Group("/api")
	api.GET("/status", s.status)
	api.GET("/query", s.query)
	api.GET("/stream", s.stream)
	api.GET("/sessions/:id/response.json", s.download)
	return e
}

func (s *Server) status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"online": s.pinger.Online()})
}

// loadSession fetches or creates the session state for an ID, returning a
// fresh state with a minted ID when the client sends none.
func (s *Server) loadSession(id string) (*session.State, error) {
	if id == "" {
		return &session.State{ID: uuid.NewString(), UpdatedAt: time.Now().UTC()}, nil
	}
	st, ok, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &session.State{ID: id, UpdatedAt: time.Now().UTC()}, nil
	}
	return st, nil
}
