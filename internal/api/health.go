package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// healthCheckTimeout bounds the whole probe run. A probe still running at the
// deadline is reported as timed out.
const healthCheckTimeout = 2 * time.Second

// HealthProbe checks one backing dependency (state store, sink).
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to HealthProbe.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
}

func (p ProbeFunc) Name() string { return p.ProbeName }

func (p ProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs every probe concurrently and answers 200 when all pass,
// 503 otherwise.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "healthy"}
	if s.Config != nil {
		resp.Version = s.Config.Build.Version
	}

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, resp)
		return
	}

	// One buffered slot per probe, so a late probe never blocks after the
	// handler has returned.
	results := make([]chan error, len(probes))
	var g errgroup.Group
	for i, probe := range probes {
		results[i] = make(chan error, 1)
		g.Go(func() error {
			results[i] <- runProbe(ctx, probe)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	resp.Components = make(map[string]componentStatus, len(probes))
	for i, probe := range probes {
		select {
		case err := <-results[i]:
			if err != nil {
				resp.Status = "unhealthy"
				resp.Components[probe.Name()] = componentStatus{Status: "unhealthy", Message: err.Error()}
				continue
			}
			resp.Components[probe.Name()] = componentStatus{Status: "healthy"}
		default:
			resp.Status = "unhealthy"
			resp.Components[probe.Name()] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	JSON(w, r, status, resp)
}

func runProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			err = fmt.Errorf("probe panicked: %v", rvr)
		}
	}()
	return p.Check(ctx)
}
