// Package host is the dispatch surface components are invoked through:
// operation name plus raw JSON input in, raw JSON output back, with separate
// describe, validate-config and healthcheck calls.
package host

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"eventgate/internal/types"
)

// Operation names a component operation.
type Operation string

// Operations shared across components.
const (
	OpPublish    Operation = "publish"
	OpIngest     Operation = "ingest"
	OpIngestHTTP Operation = "ingest_http"
	OpSend       Operation = "send"
	OpTimerTick  Operation = "timer_tick"
	OpFire       Operation = "fire"
	OpEcho       Operation = "echo"
)

// Description is what describe returns.
type Description struct {
	ProviderType string         `json:"provider_type"`
	Capabilities map[string]any `json:"capabilities"`
	Ops          []Operation    `json:"ops"`
}

// Supports reports whether op is one of d.Ops.
func (d Description) Supports(op Operation) bool {
	for _, o := range d.Ops {
		if o == op {
			return true
		}
	}
	return false
}

// ValidationResult is what validate_config returns.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Config any    `json:"config,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Health is what healthcheck returns.
type Health struct {
	Status string `json:"status"`
}

// HealthOK is the only status components report today.
var HealthOK = Health{Status: "ok"}

// Component is one provider behind the dispatch surface. Invoke is only
// called with operations listed by Describe.
type Component interface {
	Name() string
	Describe() Description
	ValidateConfig(raw []byte) ValidationResult
	Healthcheck(ctx context.Context) Health
	Invoke(ctx context.Context, op Operation, input []byte) (any, error)
}

// ParseOperation checks name against the component's closed set of operations.
func ParseOperation(c Component, name string) (Operation, error) {
	op := Operation(name)
	if !c.Describe().Supports(op) {
		return "", types.NewAppErrorWithDetails(types.ErrCodeConfigUnsupportedOp,
			"unsupported op "+name, nil, map[string]any{"component": c.Name(), "op": name})
	}
	return op, nil
}

// Invoke runs op on c and encodes the outcome. Errors never escape: they are
// rendered as {"error": "<message>"}.
func Invoke(ctx context.Context, c Component, opName string, input []byte) []byte {
	out, err := Call(ctx, c, opName, input)
	if err != nil {
		types.LoggerFromContext(ctx).Warn("component invocation failed",
			"component", c.Name(),
			"op", opName,
			"error_kind", string(types.KindOf(err)),
			"error", err.Error(),
		)
		return ErrorBytes(err)
	}
	return out
}

// Call is Invoke for callers that map the error themselves, such as the
// HTTP gateway choosing a status code.
func Call(ctx context.Context, c Component, opName string, input []byte) ([]byte, error) {
	op, err := ParseOperation(c, opName)
	if err != nil {
		return nil, err
	}
	result, err := c.Invoke(ctx, op, input)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(result)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeOtherSerialization, "encode result", err)
	}
	return out, nil
}

// ErrorBytes renders err as {"error": "<message>"}.
func ErrorBytes(err error) []byte {
	out, _ := json.Marshal(map[string]string{"error": err.Error()})
	return out
}

// DescribeBytes encodes c.Describe().
func DescribeBytes(c Component) []byte {
	out, _ := json.Marshal(c.Describe())
	return out
}

// ValidateBytes encodes the validate_config result for raw.
func ValidateBytes(c Component, raw []byte) []byte {
	out, _ := json.Marshal(c.ValidateConfig(raw))
	return out
}

// HealthBytes encodes the healthcheck result.
func HealthBytes(ctx context.Context, c Component) []byte {
	out, _ := json.Marshal(c.Healthcheck(ctx))
	return out
}

// Registry holds components by name.
type Registry struct {
	mu         sync.RWMutex
	components map[string]Component
}

// NewRegistry returns a registry holding cs.
func NewRegistry(cs ...Component) *Registry {
	r := &Registry{components: make(map[string]Component, len(cs))}
	for _, c := range cs {
		r.Register(c)
	}
	return r
}

// Register adds or replaces c.
func (r *Registry) Register(c Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[c.Name()] = c
}

// Get returns the component called name.
func (r *Registry) Get(name string) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[name]
	return c, ok
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.components))
	for n := range r.components {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
