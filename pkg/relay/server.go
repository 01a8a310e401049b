package relay

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/moumouls/aero-4g-cam/pkg/redactor"
)

const (
	authHeaderName  = "Authorization"
	shutdownTimeout = 10 * time.Second
)

// Server exposes the trigger over HTTP and runs the scheduler alongside.
type Server struct {
	trigger   *Trigger
	secret    redactor.String
	scheduler *Scheduler
	log       *zap.Logger
}

// NewServer creates a relay server. An empty secret leaves the endpoint open;
// a nil scheduler disables cron dispatches.
func NewServer(trigger *Trigger, secret redactor.String, scheduler *Scheduler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{trigger: trigger, secret: secret, scheduler: scheduler, log: log}
}

// Handler builds the gin engine.
func (s *Server) Handler() http.Handler {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(
		ginzap.Ginzap(s.log, time.RFC3339, true),
		recovery(s.log, true),
		cors,
	)
	engine.POST("/", s.requireSecret, s.handleTrigger)
	engine.POST("/trigger", s.requireSecret, s.handleTrigger)
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error":   "Method not allowed",
			"message": "Only POST requests are accepted",
		})
	})
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "message": c.Request.URL.Path})
	})
	return engine
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	if s.scheduler != nil {
		s.scheduler.Start()
		defer s.scheduler.Stop()
	}

	errs := make(chan error, 1)
	go func() {
		s.log.Info("Starting relay", zap.String("addr", addr))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "relay server")
	case <-ctx.Done():
		s.log.Info("Stopping relay")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func cors(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusOK)
	}
}

func (s *Server) requireSecret(c *gin.Context) {
	if s.secret == "" {
		return
	}
	provided := strings.TrimPrefix(c.GetHeader(authHeaderName), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.secret.Reveal())) == 1 {
		return
	}
	s.log.Info("Rejected trigger with invalid secret", zap.String("clientIP", c.ClientIP()))
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "Unauthorized",
		"message": "Invalid API secret",
	})
}

func (s *Server) handleTrigger(c *gin.Context) {
	res, err := s.trigger.Fire(c.Request.Context(), "http")
	if err == nil {
		c.JSON(http.StatusOK, res)
		return
	}

	var upstream *UpstreamError
	switch {
	case errors.As(err, &upstream):
		c.AbortWithStatusJSON(upstream.Status, gin.H{
			"error":   "GitHub API error",
			"message": "Failed to trigger workflow",
			"status":  upstream.Status,
			"details": upstream.Details,
		})
	case errors.Is(err, ErrInFlight):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":   "Conflict",
			"message": err.Error(),
		})
	default:
		s.log.Error("Aborting with server error", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": err.Error(),
		})
	}
}

func recovery(logger *zap.Logger, stack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			panicValue := recover()
			if panicValue == nil {
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			ce := logger.Check(zap.ErrorLevel, "[Recovery]")
			if ce == nil {
				return
			}

			fields := []zap.Field{zap.Any("error", panicValue)}
			if stack && ce.Entry.Stack == "" {
				fields = append(fields, zap.Stack("stacktrace"))
			} else if !stack {
				ce.Entry.Stack = ""
			}
			ce.Write(fields...)
		}()
		c.Next()
	}
}
