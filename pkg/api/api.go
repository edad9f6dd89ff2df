package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quantumdatasynergy/contact-api/pkg/apiresponses"
	"github.com/quantumdatasynergy/contact-api/pkg/config"
	"github.com/quantumdatasynergy/contact-api/pkg/metrics"
	"github.com/quantumdatasynergy/contact-api/pkg/ratelimit"
	"github.com/quantumdatasynergy/contact-api/pkg/system"
)

type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

type Server struct {
	gin    *gin.Engine
	config config.Config
	log    *zap.SugaredLogger
	burst  *ratelimit.BurstGuard
}

// NewServer builds the engine with request ids, access logging, panic
// recovery, CORS and the body size limit in place. Controllers are added
// with RegisterAll.
func NewServer(log *zap.Logger, cfg config.Config, debug bool) (*Server, error) {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	sugar := log.Sugar().Named("api")
	engine.Use(
		system.RequestContext(log.Sugar()),
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.CustomRecoveryWithZap(log, true, recoverWith(cfg.DevelopmentMode)),
		cors.New(cors.Config{
			AllowOrigins: cfg.Origins(),
			AllowMethods: []string{http.MethodPost, http.MethodOptions, http.MethodGet},
			AllowHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}),
		limitBody(cfg.Server.MaxBodyBytes),
	)

	engine.NoRoute(func(c *gin.Context) {
		apiresponses.RespondNotFoundSimple(c, "Endpoint not found")
	})

	s := &Server{
		gin:    engine,
		config: cfg,
		log:    sugar,
		burst:  ratelimit.NewBurstGuard(ratelimit.BurstConfigFrom(cfg.RateLimit.Burst)),
	}

	engine.GET("/", s.getRoot)
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	return s, nil
}

func (s *Server) RegisterAll(controllers []APIController) error {
	r := s.gin.Group("api", s.burst.Middleware())
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

// Handler exposes the engine, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Serve listens on the configured address until ctx is done, then drains
// in-flight requests for at most the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddr(), err)
	}
	return s.ServeListener(ctx, ln)
}

func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.gin,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("Contact API listening", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s.log.Infow("Shutting down HTTP server", "timeout", timeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// Close releases the background resources of the server.
func (s *Server) Close() {
	if s.burst != nil {
		s.burst.Stop()
	}
}

type rootResponse struct {
	Message   string            `json:"message"`
	Domain    string            `json:"domain"`
	Endpoints map[string]string `json:"endpoints"`
}

func (s *Server) getRoot(c *gin.Context) {
	apiresponses.RespondOK(c, rootResponse{
		Message: s.config.Branding.Name + " Contact API",
		Domain:  s.config.Branding.Domain,
		Endpoints: map[string]string{
			"health":     "/api/health",
			"contact":    "/api/contact",
			"newsletter": "/api/newsletter",
		},
	})
}

func recoverWith(exposeDetails bool) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		var err error
		if e, ok := recovered.(error); ok {
			err = e
		} else {
			err = fmt.Errorf("%v", recovered)
		}
		c.Abort()
		apiresponses.RespondInternalError(c, "Internal server error", err, exposeDetails)
	}
}

// limitBody caps request bodies; reads past the limit fail and surface as
// an invalid body.
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
