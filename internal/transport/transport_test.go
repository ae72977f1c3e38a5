package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventgate/internal/types"
)

func TestHTTPTransport_Send(t *testing.T) {
	var gotBody, gotCT, gotUA, gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotCT = r.Header.Get("Content-Type")
		gotUA = r.Header.Get("User-Agent")
		gotReqID = r.Header.Get("X-Request-Id")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.Client(), "test", WithUserAgent("eventgate/test"))
	ctx := types.WithRequestID(context.Background(), "req-9")
	resp, err := tr.Send(ctx, Request{
		Method:  "POST",
		URL:     srv.URL,
		Headers: map[string]string{"content-type": "application/json"},
		Body:    []byte(`{"a":1}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.Status)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, `{"a":1}`, gotBody)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, "eventgate/test", gotUA)
	assert.Equal(t, "req-9", gotReqID)
}

func TestHTTPTransport_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	resp, err := NewHTTPTransport(srv.Client(), "test").Send(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindTransport))
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
}

func TestHTTPTransport_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:    "tight",
		Timeout: time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	})
	tr := NewHTTPTransport(srv.Client(), "tight", WithBreaker(cb))
	for i := 0; i < 2; i++ {
		_, err := tr.Send(context.Background(), Request{URL: srv.URL})
		require.Error(t, err)
	}

	_, err := tr.Send(context.Background(), Request{URL: srv.URL})
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeTransportUnavailable, appErr.Code)
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPTransport_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPTransport(http.DefaultClient, "test").Send(context.Background(), Request{URL: url})
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeTransportSend, appErr.Code)
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.Send(context.Background(), Request{URL: "https://x"})
	assert.True(t, types.IsKind(err, types.KindTransport))
}
