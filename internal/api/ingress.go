package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"eventgate/internal/channels/sms"
	"eventgate/internal/channels/webhook"
	"eventgate/internal/components"
	"eventgate/internal/secrets"
	"eventgate/internal/types"
)

const (
	// webhookSignatureTolerance is the accepted clock skew of X-Signature
	// timestamps.
	webhookSignatureTolerance = 5 * time.Minute

	headerCorrelationID = "X-Correlation-Id"
	twilioTokenContext  = "twilio request signature"

	// emptyTwiML acknowledges an inbound message without replying.
	emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
)

// acceptedResponse is returned by the ingress routes once the envelope has
// been handed to the sink.
type acceptedResponse struct {
	EventID    string `json:"event_id"`
	Topic      string `json:"topic"`
	ReceiptID  string `json:"receipt_id,omitempty"`
	StateKey   string `json:"state_key,omitempty"`
	StateError string `json:"state_error,omitempty"`
}

// HandleWebhook maps a request under the webhook base path to an envelope.
// Routes with a signing secret require a valid X-Signature.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := s.readBody(w, r)
	if err != nil {
		Error(w, r, err)
		return
	}
	tenant, err := s.requestTenant(r)
	if err != nil {
		Error(w, r, err)
		return
	}

	endpoint := *s.Channels.Webhook
	validated, err := s.verifyWebhook(ctx, r, endpoint, tenant, body)
	if err != nil {
		Error(w, r, err)
		return
	}

	res, err := s.webhook.Ingest(ctx, components.WebhookIngestInput{
		Endpoint: endpoint,
		Request: webhook.InboundRequest{
			Method:             r.Method,
			Path:               r.URL.Path,
			Headers:            types.RedactHeaders(flattenHeaders(r.Header)),
			Body:               payloadJSON(body),
			CorrelationID:      correlationID(r),
			SignatureValidated: validated,
		},
		Tenant: &tenant,
	})
	if err != nil {
		Error(w, r, err)
		return
	}
	if err := s.publish(ctx, res.Event, res.SecretEvents); err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusAccepted, acceptedResponse{
		EventID:    res.Event.ID,
		Topic:      res.Event.Topic,
		ReceiptID:  res.ReceiptID,
		StateKey:   res.StateKey,
		StateError: res.StateError,
	})
}

// verifyWebhook checks X-Signature for routes that name a signing secret.
// Unknown routes pass through so Ingest reports them.
func (s *Server) verifyWebhook(ctx context.Context, r *http.Request, endpoint webhook.EndpointConfig, tenant types.TenantCtx, body []byte) (bool, error) {
	route, ok := webhook.NewSource(endpoint).MatchRoute(r.URL.Path)
	if !ok || route.SecretRef == "" {
		return false, nil
	}
	res, err := webhook.LookupRouteSecret(ctx, route, s.secrets, tenant)
	if err != nil {
		return false, err
	}
	header := r.Header.Get(webhook.SignatureHeader)
	if !res.Found() || !webhook.Verify(body, header, res.Value, s.clock.Now(), webhookSignatureTolerance) {
		return false, types.NewAppErrorWithDetails(types.ErrCodeAuthSignature,
			"webhook signature verification failed", nil, map[string]any{"path": route.Path})
	}
	return true, nil
}

// HandleTwilioInbound accepts Twilio's form-encoded inbound message webhook.
// When the channel names a signing secret the X-Twilio-Signature header must
// match the resolved auth token.
func (s *Server) HandleTwilioInbound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := s.maxBodyBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseForm(); err != nil {
		Error(w, r, mapBodyError(err, limit))
		return
	}
	tenant, err := s.requestTenant(r)
	if err != nil {
		Error(w, r, err)
		return
	}

	ch := s.Channels.SMS
	var (
		validated    bool
		secretEvents []types.EventEnvelope
	)
	if ref := ch.Source.SigningSecretRef; ref != "" {
		res, err := secrets.Resolve(ctx, s.secrets, secrets.Lookup{
			Key:     ref,
			Scope:   secrets.ScopeTenant,
			Tenant:  tenant,
			Source:  sms.SourceName,
			Context: twilioTokenContext,
		})
		if err != nil {
			Error(w, r, err)
			return
		}
		secretEvents = res.Events
		if !res.Found() || !sms.ValidSignature(res.Value, s.publicURL(r), r.PostForm, r.Header.Get(sms.SignatureHeader)) {
			Error(w, r, types.NewAppError(types.ErrCodeAuthSignature, "twilio signature verification failed", nil))
			return
		}
		validated = true
	}

	payload := sms.PayloadFromForm(r.PostForm, types.RedactHeaders(flattenHeaders(r.Header)), validated)
	res, err := s.sms.Ingest(ctx, components.SMSIngestInput{
		Config:  components.SMSConfig{Source: ch.Source, Sink: ch.Sink},
		Tenant:  &tenant,
		Payload: payload,
	})
	if err != nil {
		Error(w, r, err)
		return
	}
	if err := s.publish(ctx, res.Event, secretEvents); err != nil {
		Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

// HandleTimerFire fires a schedule from the channel file by name.
func (s *Server) HandleTimerFire(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.requestTenant(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	res, err := s.timer.Fire(r.Context(), components.TimerFireInput{
		Config:   components.TimerConfig{Schedules: s.Channels.Timer.Schedules},
		Schedule: chi.URLParam(r, "name"),
		Tenant:   &tenant,
	})
	if err != nil {
		Error(w, r, err)
		return
	}
	if err := s.publish(r.Context(), res.Event, nil); err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusAccepted, acceptedResponse{EventID: res.Event.ID, Topic: res.Event.Topic})
}

// publish hands an envelope and its audit trail to the sink in one call.
func (s *Server) publish(ctx context.Context, env types.EventEnvelope, audit []types.EventEnvelope) error {
	envs := make([]types.EventEnvelope, 0, 1+len(audit))
	envs = append(envs, env)
	envs = append(envs, audit...)
	if err := s.Publisher.Publish(ctx, envs...); err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeTransportSend, "failed to publish envelope", err,
			map[string]any{"event_id": env.ID})
	}
	return nil
}

// requestTenant is the header tenant, else the configured default.
func (s *Server) requestTenant(r *http.Request) (types.TenantCtx, error) {
	if t, ok := types.TenantFromContext(r.Context()); ok {
		return t, nil
	}
	if !s.defaultTenant.IsZero() {
		return s.defaultTenant, nil
	}
	return types.TenantCtx{}, types.ConfigErrorf(types.ErrCodeConfigInvalidTenant,
		"tenant is required: send %s and %s", HeaderTenantEnv, HeaderTenant)
}

// publicURL is the URL Twilio signed: the configured public base plus the
// request URI, or the URL as seen through the proxy headers.
func (s *Server) publicURL(r *http.Request) string {
	if s.Config != nil && s.Config.Server.PublicURL != "" {
		return strings.TrimRight(s.Config.Server.PublicURL, "/") + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func correlationID(r *http.Request) string {
	if id := r.Header.Get(headerCorrelationID); id != "" {
		return id
	}
	return types.GetRequestID(r.Context())
}

// flattenHeaders joins repeated header values.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = strings.Join(values, ", ")
	}
	return out
}
