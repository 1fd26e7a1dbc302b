package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/eugenenazirov/simserver/internal/accesslog"
)

// entrySink is the destination for per-request log entries.
type entrySink interface {
	Append(accesslog.Entry) error
}

// RouterOption configures the behaviour of NewRouter.
type RouterOption func(*routerConfig)

// WithRateLimit enables the token bucket limiter. Zero or negative values
// leave rate limiting disabled.
func WithRateLimit(rps float64, burst int) RouterOption {
	return func(cfg *routerConfig) {
		cfg.rateLimiter = newTokenBucketLimiter(rps, burst)
	}
}

// WithRateLimiter overrides the request rate limiter (primarily for tests).
func WithRateLimiter(limiter rateLimiter) RouterOption {
	return func(cfg *routerConfig) {
		cfg.rateLimiter = limiter
	}
}

// WithEntryClock overrides the time source for access-log entries,
// primarily for tests.
func WithEntryClock(clock func() time.Time) RouterOption {
	return func(cfg *routerConfig) {
		cfg.entryClock = clock
	}
}

type routerConfig struct {
	logger      *zap.Logger
	rateLimiter rateLimiter
	entryClock  func() time.Time
}

// NewRouter builds the HTTP router: the three fixed routes plus the standard
// middleware chain. Unmatched paths and unsupported methods both land on the
// welcome page. Every handled request appends exactly one entry to sink
// after the response is written; appends that fail are reported on logger
// and never affect the response.
func NewRouter(handler *Handler, logger *zap.Logger, sink entrySink, opts ...RouterOption) http.Handler {
	cfg := routerConfig{
		logger:     logger,
		entryClock: time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()
	r.Get("/test", handler.handleTest)
	r.Get("/health", handler.handleHealth)
	r.NotFound(handler.handleDefault)
	r.MethodNotAllowed(handler.handleDefault)

	var root http.Handler = r
	root = recoveryMiddleware(cfg.logger, root)
	root = accessLogMiddleware(sink, cfg.logger, cfg.entryClock, root)
	root = rateLimitMiddleware(cfg.rateLimiter, root)
	root = requestIDMiddleware(root)

	return root
}

// accessLogMiddleware appends one entry per request once the wrapped handler
// has produced its response. The append happens after the response bytes are
// written, so a sink failure can never alter what the client received.
func accessLogMiddleware(sink entrySink, logger *zap.Logger, clock func() time.Time, next http.Handler) http.Handler {
	if sink == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		entry := accesslog.Entry{
			Timestamp: clock(),
			IP:        clientIP(r),
			Method:    r.Method,
			Path:      r.URL.RequestURI(),
			Status:    rec.status,
		}
		if err := sink.Append(entry); err != nil {
			logger.Error("access log write failed",
				zap.Error(err),
				zap.String("path", entry.Path),
				zap.String("request_id", requestIDFromContext(r.Context())),
			)
		}
	})
}

func recoveryMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "Internal error", "unexpected server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = generateRequestID()
		}
		ctx := contextWithRequestID(r.Context(), requestID)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func generateRequestID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(buf)
}

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// clientIP strips the port from the remote address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
