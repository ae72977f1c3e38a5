package types

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTenantCtx(t *testing.T) {
	t.Run("valid identifiers", func(t *testing.T) {
		tc, err := NewTenantCtx("dev", "acme")
		require.NoError(t, err)
		assert.Equal(t, "dev", tc.Env())
		assert.Equal(t, "acme", tc.Tenant())
		_, hasTeam := tc.Team()
		assert.False(t, hasTeam)
	})

	cases := []struct {
		name, env, tenant string
	}{
		{"empty env", "", "acme"},
		{"empty tenant", "dev", ""},
		{"slash in tenant", "dev", "ac/me"},
		{"leading dot", ".dev", "acme"},
		{"too long", "dev", strings.Repeat("a", maxIdentifierLength+1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTenantCtx(tc.env, tc.tenant)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindConfig))
		})
	}
}

func TestTenantCtx_WithTeamIsCopy(t *testing.T) {
	base := MustTenantCtx("prod", "acme")
	scoped, err := base.WithTeam("ops")
	require.NoError(t, err)

	_, baseHasTeam := base.Team()
	team, ok := scoped.Team()
	assert.False(t, baseHasTeam)
	assert.True(t, ok)
	assert.Equal(t, "ops", team)
	assert.Equal(t, "prod/acme/ops", scoped.String())

	_, err = base.WithUser("bad user")
	assert.Error(t, err)
}

func TestTenantCtx_JSON(t *testing.T) {
	tc := MustTenantCtx("dev", "acme")
	raw, err := json.Marshal(tc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"env":"dev","tenant":"acme","team":null,"user":null}`, string(raw))

	withUser, err := tc.WithUser("u-1")
	require.NoError(t, err)
	raw, err = json.Marshal(withUser)
	require.NoError(t, err)

	var decoded TenantCtx
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, withUser, decoded)

	err = json.Unmarshal([]byte(`{"env":"dev","tenant":""}`), &decoded)
	assert.True(t, IsKind(err, KindConfig))
}

func TestNewEvent(t *testing.T) {
	tenant := MustTenantCtx("dev", "acme")
	before := time.Now().UTC().Add(-time.Second)

	a := NewEvent("t.topic", "com.example.v1", "unit", tenant, "", "corr-1", json.RawMessage(`{"a":1}`), nil)
	b := NewEvent("t.topic", "com.example.v1", "unit", tenant, "", "corr-1", json.RawMessage(`{"a":1}`), nil)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID, "ids are never derived from content")
	assert.Nil(t, a.Subject)
	assert.Equal(t, "corr-1", a.CorrelationValue())
	assert.Equal(t, time.UTC, a.Time.Location())
	assert.True(t, a.Time.After(before))
	assert.NotNil(t, a.Metadata)
}

func TestEventEnvelope_RoundTrip(t *testing.T) {
	tenant, err := MustTenantCtx("dev", "acme").WithTeam("ops")
	require.NoError(t, err)
	md := Metadata{}
	md.Set(MetaHTTPMethod, "POST")
	SetIdempotencyKey(md, "idem-1")

	env := NewEvent("webhook.stripe.paid", "com.example.v1", "unit", tenant, "/stripe", "", json.RawMessage(`{"type":"paid"}`), md)
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded EventEnvelope
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, env.Time.Equal(decoded.Time))
	decoded.Time = env.Time
	assert.Equal(t, env, decoded)
	assert.NotContains(t, string(raw), "correlation_id")
}

func TestSetIdempotencyKey_Idempotent(t *testing.T) {
	md := Metadata{"x": "1"}
	SetIdempotencyKey(md, "k")
	first := md.Clone()
	SetIdempotencyKey(md, "k")
	assert.Equal(t, first, md)
	assert.Equal(t, []string{MetaIdempotencyKey, "x"}, md.Keys())
}

func TestHeaderKey(t *testing.T) {
	assert.Equal(t, "header:idempotency-key", HeaderKey("Idempotency-Key"))
}

func TestAppError(t *testing.T) {
	t.Run("format includes kind label", func(t *testing.T) {
		err := ConfigErrorf(ErrCodeConfigUnknownRoute, "no route for path %s", "/x")
		assert.Equal(t, "configuration error: no route for path /x", err.Error())
		assert.Equal(t, http.StatusNotFound, err.HTTPStatus())
	})

	t.Run("unwrap chain", func(t *testing.T) {
		sentinel := errors.New("boom")
		err := fmt.Errorf("wrap: %w", NewAppError(ErrCodeAuthSecretStore, "secret store failed", sentinel))
		assert.True(t, errors.Is(err, sentinel))
		assert.True(t, IsKind(err, KindAuth))
		assert.Equal(t, KindAuth, KindOf(err))
	})

	t.Run("plain errors are other", func(t *testing.T) {
		assert.Equal(t, KindOther, KindOf(errors.New("x")))
		assert.False(t, IsKind(nil, KindOther))
	})

	t.Run("with details copies", func(t *testing.T) {
		base := MissingFieldError("string", "subject")
		more := base.WithDetails(map[string]any{"topic": "email.out.gmail"})
		assert.Len(t, base.Details, 1)
		assert.Len(t, more.Details, 2)
		assert.Equal(t, "configuration error: missing string field subject", base.Error())
	})

	statuses := map[ErrorCode]int{
		ErrCodeConfigMissingField:     http.StatusBadRequest,
		ErrCodeConfigUnknownComponent: http.StatusNotFound,
		ErrCodeAuthSignature:          http.StatusUnauthorized,
		ErrCodeTransportSend:          http.StatusBadGateway,
		ErrCodeOtherPersistence:       http.StatusInternalServerError,
		ErrorCode("something_new"):    http.StatusInternalServerError,
	}
	for code, want := range statuses {
		assert.Equal(t, want, code.HTTPStatus(), code)
	}
}

func TestSecretString(t *testing.T) {
	s := SecretString("super-secret-api-key-12345")

	assert.Equal(t, redactedPlaceholder, s.String())
	assert.NotContains(t, fmt.Sprintf("%s %v", s, s), "super-secret")

	raw, err := json.Marshal(struct {
		Key SecretString `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"***REDACTED***"}`, string(raw))
	assert.Equal(t, "super-secret-api-key-12345", s.Unmask())
	assert.False(t, SecretString("").IsSet())
}

func TestRedactHeaders(t *testing.T) {
	in := map[string]string{"Authorization": "Bearer abc", "content-type": "application/json"}
	out := RedactHeaders(in)
	assert.Equal(t, Redacted, out["Authorization"])
	assert.Equal(t, "application/json", out["content-type"])
	assert.Equal(t, "Bearer abc", in["Authorization"])
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetRequestID(ctx))
	assert.IsType(t, NopLogger{}, LoggerFromContext(ctx))
	_, ok := TenantFromContext(ctx)
	assert.False(t, ok)

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTenant(ctx, MustTenantCtx("dev", "acme"))
	assert.Equal(t, "req-1", GetRequestID(ctx))
	tc, ok := TenantFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "acme", tc.Tenant())
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	var logger Logger = NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	logger.With("component", "webhook").Warn("state write failed", "state_key", "events/x.json")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "state write failed", line["msg"])
	assert.Equal(t, "webhook", line["component"])
	assert.Equal(t, "events/x.json", line["state_key"])
}
