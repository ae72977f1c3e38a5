package security

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticResolver map[string][]string

func (r staticResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := r[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	out := make([]net.IPAddr, 0, len(ips))
	for _, s := range ips {
		out = append(out, net.IPAddr{IP: net.ParseIP(s)})
	}
	return out, nil
}

func TestGuard_IsBlocked(t *testing.T) {
	g, err := NewGuard(nil, staticResolver{})
	require.NoError(t, err)

	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "169.254.169.254", "::1", "fd00::1"} {
		assert.True(t, g.IsBlocked(net.ParseIP(ip)), ip)
	}
	for _, ip := range []string{"8.8.8.8", "52.1.2.3", "2606:4700::1111"} {
		assert.False(t, g.IsBlocked(net.ParseIP(ip)), ip)
	}
}

func TestGuard_AllowList(t *testing.T) {
	g, err := NewGuard([]string{"127.0.0.0/8"}, staticResolver{})
	require.NoError(t, err)
	assert.False(t, g.IsBlocked(net.ParseIP("127.0.0.1")))
	assert.True(t, g.IsBlocked(net.ParseIP("10.0.0.1")))

	_, err = NewGuard([]string{"not-a-cidr"}, nil)
	assert.Error(t, err)
}

func TestGuard_ValidateURL(t *testing.T) {
	g, err := NewGuard(nil, staticResolver{
		"hooks.example.com": {"93.184.216.34"},
		"rebind.example":    {"93.184.216.34", "10.0.0.5"},
	})
	require.NoError(t, err)
	ctx := context.Background()

	assert.NoError(t, g.ValidateURL(ctx, "https://hooks.example.com/in"))
	assert.ErrorIs(t, g.ValidateURL(ctx, "https://rebind.example/in"), ErrBlocked)
	assert.ErrorIs(t, g.ValidateURL(ctx, "http://169.254.169.254/latest"), ErrBlocked)
	assert.ErrorIs(t, g.ValidateURL(ctx, "ftp://hooks.example.com"), ErrBlocked)
	assert.ErrorIs(t, g.ValidateURL(ctx, "https://unknown.example"), ErrDNSFailed)
}

func TestGuard_CheckRedirect(t *testing.T) {
	g, err := NewGuard(nil, staticResolver{"ok.example": {"93.184.216.34"}})
	require.NoError(t, err)
	check := g.CheckRedirect(2)

	req := &http.Request{URL: mustURL(t, "http://ok.example/x")}
	req = req.WithContext(context.Background())
	assert.NoError(t, check(req, nil))
	assert.ErrorIs(t, check(req, []*http.Request{req, req}), ErrTooManyRedirect)

	internal := (&http.Request{URL: mustURL(t, "http://10.0.0.1/")}).WithContext(context.Background())
	assert.ErrorIs(t, check(internal, nil), ErrBlocked)
}

func TestGuard_HTTPClientBlocksLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	blocked, err := NewGuard(nil, nil)
	require.NoError(t, err)
	_, err = blocked.NewHTTPClient(time.Second, 3).Get(srv.URL)
	assert.ErrorIs(t, err, ErrBlocked)

	allowed, err := NewGuard([]string{"127.0.0.0/8"}, nil)
	require.NoError(t, err)
	resp, err := allowed.NewHTTPClient(time.Second, 3).Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
