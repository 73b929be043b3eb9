package api

import (
	"time"

	"trading-bot/internal/events"
	"trading-bot/internal/lifecycle"
	"trading-bot/internal/monitor"
	"trading-bot/internal/ratelimit"
	"trading-bot/internal/scheduler"
	"trading-bot/pkg/db"

	"github.com/gin-gonic/gin"
)

// Server wires HTTP endpoints around the runtime substrate.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	Lifecycle *lifecycle.Manager
	Limiter   *ratelimit.Limiter
	Sched     *scheduler.Scheduler
	Metrics   *monitor.Metrics
	DB        *db.Database

	JWTSecret     string
	AdminUser     string
	AdminPassword string

	Meta SystemMeta
}

// SystemMeta describes runtime status exposed to clients.
type SystemMeta struct {
	Symbols     []string `json:"symbols"`
	UseMockFeed bool     `json:"use_mock_feed"`
	Version     string   `json:"version"`
}

// NewServer builds the router with the standard middleware stack.
func NewServer(bus *events.Bus, lc *lifecycle.Manager, limiter *ratelimit.Limiter, sched *scheduler.Scheduler, metrics *monitor.Metrics, database *db.Database, meta SystemMeta, jwtSecret, adminUser, adminPassword string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())          // Panic recovery (first)
	r.Use(RequestIDMiddleware())   // Request ID tracking
	r.Use(RequestLogger(metrics))  // Request logging (after ID is set)
	r.Use(RateLimitMiddleware())   // Per-IP rate limiting
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:        r,
		Bus:           bus,
		Lifecycle:     lc,
		Limiter:       limiter,
		Sched:         sched,
		Metrics:       metrics,
		DB:            database,
		JWTSecret:     jwtSecret,
		AdminUser:     adminUser,
		AdminPassword: adminPassword,
		Meta:          meta,
	}
	s.routes()
	return s
}

// Start runs the HTTP server (blocking).
func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}

func (s *Server) routes() {
	s.Router.GET("/healthz", s.healthz)
	s.Router.POST("/api/auth/login", s.login)
	s.Router.GET("/ws/events", s.websocket)

	authed := s.Router.Group("/api", AuthMiddleware(s.JWTSecret))
	authed.GET("/status", s.status)
	authed.GET("/metrics", s.metrics)
	authed.GET("/ratelimits", s.rateLimits)

	authed.POST("/state", s.transitionState)
	authed.GET("/transitions", s.listTransitions)

	authed.GET("/pauses", s.listPauses)
	authed.POST("/pauses", s.addPause)
	authed.DELETE("/pauses", s.clearPauses)

	authed.GET("/journal", s.listJournal)
	authed.GET("/scheduler", s.schedulerStatus)
}
