// Package httpserver exposes the account and analysis HTTP API.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/and161185/analysis-keeper/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// TokenParser resolves a bearer token into a user id.
type TokenParser interface {
	Parse(raw string) (uuid.UUID, error)
}

// ReadyCheck reports whether a dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// Options tune the router. Zero values disable the optional parts.
type Options struct {
	MaxUploadBytes int64
	RateLimit      gin.HandlerFunc
	Ready          map[string]ReadyCheck
	Gatherer       prometheus.Gatherer
}

// Server wires services into gin handlers.
type Server struct {
	auth     service.AuthService
	analysis service.AnalysisService
	tokens   TokenParser
	log      *zap.Logger
	opts     Options
}

// New constructs a server with injected services.
func New(auth service.AuthService, analysis service.AnalysisService, tokens TokenParser, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	return &Server{auth: auth, analysis: analysis, tokens: tokens, log: log, opts: opts}
}

// Handler builds the gin engine with all routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(Recover(s.log), Logging(s.log))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", s.ready)
	if s.opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	limit := s.opts.RateLimit
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}

	api := r.Group("/api")

	// anonymous routes are limited per client address
	authG := api.Group("/auth", limit)
	authG.POST("/signup", s.signup)
	authG.POST("/login", s.login)

	// authenticated routes are limited per user
	users := api.Group("/users", s.requireAuth, limit)
	users.GET("/me", s.me)
	users.PUT("/password", s.changePassword)
	users.PUT("/name", s.updateName)

	an := api.Group("/analysis", s.requireAuth, limit)
	an.POST("/upload", s.upload)
	an.GET("/history", s.history)
	an.GET("/chart/:fileId/:chartType", s.chart)
	an.GET("/:id", s.getAnalysis)

	return r
}

func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	code := http.StatusOK
	for name, check := range s.opts.Ready {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	c.JSON(code, gin.H{"checks": checks})
}

// mustUserID is only valid behind requireAuth.
func mustUserID(c *gin.Context) uuid.UUID {
	id, _ := UserIDFromCtx(c.Request.Context())
	return id
}
