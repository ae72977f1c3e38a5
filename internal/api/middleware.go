package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"eventgate/internal/types"
)

// Tenant headers. Env and tenant must be sent together; team and user are
// optional refinements.
const (
	HeaderTenantEnv  = "X-Tenant-Env"
	HeaderTenant     = "X-Tenant-Id"
	HeaderTenantTeam = "X-Tenant-Team"
	HeaderTenantUser = "X-Tenant-User"

	headerRequestID = "X-Request-Id"
)

// responseCapture records the status written by downstream handlers.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the wrapped writer.
func (rc *responseCapture) Unwrap() http.ResponseWriter {
	return rc.ResponseWriter
}

// Recoverer turns a handler panic into a logged stack trace and a 500 error
// envelope. It must be the outermost middleware.
func (s *Server) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				s.Logger.Error("panic recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("panic", fmt.Sprintf("%v", rvr)),
					slog.String("stack", string(debug.Stack())),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = writeJSON(w, APIErrorResponse{
					Error: ErrorDetail{
						Code:      string(types.ErrCodeOtherUnexpected),
						Message:   "an unexpected error occurred",
						RequestID: types.GetRequestID(r.Context()),
					},
				})
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request and installs a request-scoped
// types.Logger in the context for the components. Headers named in
// redactedHeaders are logged masked.
func RequestLogger(logger *slog.Logger, redactedHeaders []string) func(http.Handler) http.Handler {
	redactSet := make(map[string]struct{}, len(redactedHeaders))
	for _, h := range redactedHeaders {
		redactSet[strings.ToLower(h)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := types.GetRequestID(r.Context())

			scoped := logger
			if reqID != "" {
				scoped = logger.With(slog.String("request_id", reqID))
			}
			ctx := types.WithLogger(r.Context(), types.NewSlogLogger(scoped))

			rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rc, r.WithContext(ctx))

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rc.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			}
			headerAttrs := make([]any, 0, len(r.Header))
			for name, values := range r.Header {
				if _, redact := redactSet[strings.ToLower(name)]; redact {
					headerAttrs = append(headerAttrs, slog.String(name, types.Redacted))
					continue
				}
				headerAttrs = append(headerAttrs, slog.String(name, strings.Join(values, ", ")))
			}
			if len(headerAttrs) > 0 {
				attrs = append(attrs, slog.Group("headers", headerAttrs...))
			}

			switch {
			case rc.statusCode >= 500:
				scoped.Error("request completed", attrs...)
			case rc.statusCode >= 400:
				scoped.Warn("request completed", attrs...)
			default:
				scoped.Info("request completed", attrs...)
			}
		})
	}
}

// MetricsMiddleware records latency and count per route pattern. It passes
// through when no collector is configured.
func (s *Server) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rc, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.Metrics.RecordRequest(r.Method, route, strconv.Itoa(rc.statusCode), time.Since(start))
	})
}

// SecurityHeadersMiddleware sets the standard hardening headers.
func (s *Server) SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// TenantMiddleware resolves the request tenant from the tenant headers. A
// request without them falls back to the configured default at the point of
// use. Malformed identifiers are rejected here.
func (s *Server) TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env, tenant := r.Header.Get(HeaderTenantEnv), r.Header.Get(HeaderTenant)
		if env == "" && tenant == "" {
			next.ServeHTTP(w, r)
			return
		}

		t, err := tenantFromHeaders(env, tenant, r.Header.Get(HeaderTenantTeam), r.Header.Get(HeaderTenantUser))
		if err != nil {
			Error(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(types.WithTenant(r.Context(), t)))
	})
}

func tenantFromHeaders(env, tenant, team, user string) (types.TenantCtx, error) {
	if env == "" || tenant == "" {
		return types.TenantCtx{}, types.ConfigErrorf(types.ErrCodeConfigInvalidTenant,
			"%s and %s must be sent together", HeaderTenantEnv, HeaderTenant)
	}
	t, err := types.NewTenantCtx(env, tenant)
	if err != nil {
		return t, err
	}
	if team != "" {
		if t, err = t.WithTeam(team); err != nil {
			return t, err
		}
	}
	if user != "" {
		if t, err = t.WithUser(user); err != nil {
			return t, err
		}
	}
	return t, nil
}

// ContextTimeoutMiddleware bounds every request context by duration.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware propagates X-Request-Id or generates one, storing it in
// the context and echoing it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = generateRequestID()
		}
		w.Header().Set(headerRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(types.WithRequestID(r.Context(), requestID)))
	})
}

func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fallback-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(b)
}

// writeJSON formats the recovery envelope by hand so the panic path does not
// depend on encoding/json.
func writeJSON(w http.ResponseWriter, resp APIErrorResponse) error {
	s := fmt.Sprintf(
		`{"error":{"code":"%s","message":"%s","request_id":"%s"}}`,
		escapeJSON(resp.Error.Code), escapeJSON(resp.Error.Message), escapeJSON(resp.Error.RequestID),
	)
	_, err := w.Write([]byte(s))
	return err
}

func escapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}
