package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"eventgate/internal/types"
)

// defaultRequestTimeout bounds handlers when the config sets no write timeout.
const defaultRequestTimeout = 29 * time.Second

// TwilioInboundPath is where Twilio posts inbound messages.
const TwilioInboundPath = "/sms/twilio/inbound"

var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"X-Signature",
	"X-Twilio-Signature",
}

// MountRoutes registers the middleware chain and every route. Ingress routes
// exist only for channels defined in the channel file.
//
// Middleware order:
//  1. Recoverer: outermost, catches every panic.
//  2. ContextTimeout: soft deadline below the server write timeout.
//  3. RequestID: correlation id for logs and error envelopes.
//  4. SecurityHeaders
//  5. RequestLogger: needs the request id.
//  6. Metrics
//  7. Tenant: header tenant, rejected before any handler runs.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(s.MetricsMiddleware)
	s.router.Use(s.TenantMiddleware)

	s.router.Get("/health", s.HandleHealth)

	if wh := s.Channels.Webhook; wh != nil {
		base := strings.TrimRight(wh.BasePath, "/")
		if base != "" {
			s.router.Post(base, s.HandleWebhook)
		}
		s.router.Post(base+"/*", s.HandleWebhook)
	}
	if s.Channels.SMS != nil {
		s.router.Post(TwilioInboundPath, s.HandleTwilioInbound)
	}
	s.router.Post("/timers/{name}/fire", s.HandleTimerFire)

	s.router.Route("/v1/components", s.mountComponents)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, r, http.StatusNotFound, APIErrorResponse{
			Error: ErrorDetail{Code: "not_found", Message: "no route for " + r.URL.Path, RequestID: types.GetRequestID(r.Context())},
		})
	})
}

func (s *Server) mountComponents(r chi.Router) {
	r.Get("/", s.HandleListComponents)
	r.Route("/{name}", func(r chi.Router) {
		r.Get("/", s.HandleDescribeComponent)
		r.Post("/validate", s.HandleValidateComponent)
		r.Get("/health", s.HandleComponentHealth)
		r.Post("/invoke/{op}", s.HandleInvokeComponent)
	})
}

// requestTimeout leaves one second of the write timeout for the response.
func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.WriteTimeout > time.Second {
		return s.Config.Server.WriteTimeout - time.Second
	}
	return defaultRequestTimeout
}
