package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"eventgate/internal/host"
	"eventgate/internal/types"
)

type componentSummary struct {
	Name        string           `json:"name"`
	Description host.Description `json:"description"`
}

type componentList struct {
	Components []componentSummary `json:"components"`
}

// HandleListComponents describes every registered component.
func (s *Server) HandleListComponents(w http.ResponseWriter, r *http.Request) {
	names := s.Registry.Names()
	out := componentList{Components: make([]componentSummary, 0, len(names))}
	for _, name := range names {
		if c, ok := s.Registry.Get(name); ok {
			out.Components = append(out.Components, componentSummary{Name: name, Description: c.Describe()})
		}
	}
	JSON(w, r, http.StatusOK, out)
}

// HandleDescribeComponent answers describe.
func (s *Server) HandleDescribeComponent(w http.ResponseWriter, r *http.Request) {
	c, ok := s.component(w, r)
	if !ok {
		return
	}
	RawJSON(w, http.StatusOK, host.DescribeBytes(c))
}

// HandleValidateComponent answers validate_config for the request body. An
// invalid config is still a 200: the verdict is in the body.
func (s *Server) HandleValidateComponent(w http.ResponseWriter, r *http.Request) {
	c, ok := s.component(w, r)
	if !ok {
		return
	}
	body, err := s.readBody(w, r)
	if err != nil {
		DispatchError(w, err)
		return
	}
	RawJSON(w, http.StatusOK, host.ValidateBytes(c, body))
}

// HandleComponentHealth answers healthcheck.
func (s *Server) HandleComponentHealth(w http.ResponseWriter, r *http.Request) {
	c, ok := s.component(w, r)
	if !ok {
		return
	}
	RawJSON(w, http.StatusOK, host.HealthBytes(r.Context(), c))
}

// HandleInvokeComponent runs one operation with the request body as input.
// Results are returned to the caller as is; nothing is published.
func (s *Server) HandleInvokeComponent(w http.ResponseWriter, r *http.Request) {
	c, ok := s.component(w, r)
	if !ok {
		return
	}
	body, err := s.readBody(w, r)
	if err != nil {
		DispatchError(w, err)
		return
	}

	op := chi.URLParam(r, "op")
	out, err := host.Call(r.Context(), c, op, body)
	if err != nil {
		types.LoggerFromContext(r.Context()).Warn("component invocation failed",
			"component", c.Name(),
			"op", op,
			"error_kind", string(types.KindOf(err)),
			"error", err.Error(),
		)
		DispatchError(w, err)
		return
	}
	RawJSON(w, http.StatusOK, out)
}

func (s *Server) component(w http.ResponseWriter, r *http.Request) (host.Component, bool) {
	name := chi.URLParam(r, "name")
	c, ok := s.Registry.Get(name)
	if !ok {
		DispatchError(w, types.NewAppErrorWithDetails(types.ErrCodeConfigUnknownComponent,
			"unknown component "+name, nil, map[string]any{"component": name}))
		return nil, false
	}
	return c, true
}
