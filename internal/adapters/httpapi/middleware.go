package httpapi

import (
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"

	"jobsdashboard/internal/config"
	"jobsdashboard/internal/observability"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws so that the first one is outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Recover turns handler panics into 500 responses.
func Recover(logger observability.Logger) Middleware {
	logger = observability.OrNoop(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic", "path", r.URL.Path, "panic", rec)
					writeError(w, http.StatusInternalServerError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Logging assigns a request id and logs method, path, status and latency.
func Logging(logger observability.Logger) Middleware {
	logger = observability.OrNoop(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("http request",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", time.Since(start),
			)
		})
	}
}

// Latency delays every request by d.
func Latency(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FailureInjection answers a fraction rate of requests with status code
// instead of forwarding them. roll returns values in [0,1); nil uses
// math/rand.
func FailureInjection(rate float64, code int, roll func() float64) Middleware {
	if code == 0 {
		code = http.StatusInternalServerError
	}
	if roll == nil {
		roll = rand.Float64
	}
	return func(next http.Handler) http.Handler {
		if rate <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if roll() < rate {
				writeError(w, code, "failure injected")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Wrap applies the standard middleware stack configured by cfg.
func Wrap(h http.Handler, cfg config.Server, logger observability.Logger) http.Handler {
	return Chain(h,
		Recover(logger),
		Logging(logger),
		Latency(cfg.Latency),
		FailureInjection(cfg.FailureRate, cfg.FailureCode, nil),
	)
}
