package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	maxBodyBytes    = 64 << 10
	shutdownTimeout = 10 * time.Second
	logKey          = "request_logger"
)

// NewRouter exposes the handler over gin for standalone deployments. metrics
// may be nil, in which case /metrics is not registered.
func NewRouter(h *Handler, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(h.recovery(), h.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	r.POST(contactPath, h.ginRoute)
	r.POST(faqPath, h.ginRoute)
	r.GET(faqPath, h.ginRoute)

	r.HandleMethodNotAllowed = true
	r.NoMethod(h.ginRoute)
	r.NoRoute(h.ginRoute)
	return r
}

func (h *Handler) ginRoute(c *gin.Context) {
	log := requestLog(c, h.log)

	var body []byte
	if c.Request.Method == http.MethodPost {
		b, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			log.Warn("failed to read request body", zap.Error(err))
			b = nil
		}
		body = b
	}

	res := h.route(c.Request.Context(), log, c.Request.Method, c.Request.URL.Path, c.Request.Header, body)
	if res.allow != "" {
		c.Header("Allow", res.allow)
	}
	c.JSON(res.status, res.body)
}

// requestLogger tags the request with a correlation id and logs it once on
// completion.
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		correlationID := correlationIDFrom(c.Request.Header)
		c.Header(CorrelationHeader, correlationID)

		log := h.log.With(zap.String("correlation_id", correlationID))
		c.Set(logKey, log)

		c.Next()

		log.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func (h *Handler) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				requestLog(c, h.log).Error("panic recovered", zap.Any("panic", rec))
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: msgFAQInternal})
			}
		}()
		c.Next()
	}
}

func requestLog(c *gin.Context, fallback *zap.Logger) *zap.Logger {
	if v, ok := c.Get(logKey); ok {
		if log, ok := v.(*zap.Logger); ok {
			return log
		}
	}
	return fallback
}

// Serve runs router on addr until ctx is cancelled or SIGINT/SIGTERM arrives,
// then shuts down gracefully.
func Serve(ctx context.Context, addr string, router http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("handler: serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("handler: shutdown: %w", err)
	}
	return nil
}
