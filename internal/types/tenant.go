package types

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// maxIdentifierLength bounds every TenantCtx component.
const maxIdentifierLength = 128

// identifierPattern is the accepted shape of env/tenant/team/user identifiers.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// TenantCtx is the identity tuple threaded through every envelope and secret key.
// Values are immutable: the With* methods return copies.
type TenantCtx struct {
	env    string
	tenant string
	team   string
	user   string
}

// NewTenantCtx validates env and tenant and returns a context without team or user.
func NewTenantCtx(env, tenant string) (TenantCtx, error) {
	if err := validateIdentifier("env", env); err != nil {
		return TenantCtx{}, err
	}
	if err := validateIdentifier("tenant", tenant); err != nil {
		return TenantCtx{}, err
	}
	return TenantCtx{env: env, tenant: tenant}, nil
}

// MustTenantCtx is NewTenantCtx for literals known to be valid (fixtures, tests).
func MustTenantCtx(env, tenant string) TenantCtx {
	t, err := NewTenantCtx(env, tenant)
	if err != nil {
		panic(err)
	}
	return t
}

// WithTeam returns a copy scoped to team.
func (t TenantCtx) WithTeam(team string) (TenantCtx, error) {
	if err := validateIdentifier("team", team); err != nil {
		return TenantCtx{}, err
	}
	t.team = team
	return t, nil
}

// WithUser returns a copy scoped to user.
func (t TenantCtx) WithUser(user string) (TenantCtx, error) {
	if err := validateIdentifier("user", user); err != nil {
		return TenantCtx{}, err
	}
	t.user = user
	return t, nil
}

// Env returns the environment identifier.
func (t TenantCtx) Env() string { return t.env }

// Tenant returns the tenant identifier.
func (t TenantCtx) Tenant() string { return t.tenant }

// Team returns the team identifier and whether one is set.
func (t TenantCtx) Team() (string, bool) { return t.team, t.team != "" }

// User returns the user identifier and whether one is set.
func (t TenantCtx) User() (string, bool) { return t.user, t.user != "" }

// IsZero reports whether t was never constructed.
func (t TenantCtx) IsZero() bool { return t.env == "" && t.tenant == "" }

// String renders env/tenant[/team][/user] for logs.
func (t TenantCtx) String() string {
	s := t.env + "/" + t.tenant
	if t.team != "" {
		s += "/" + t.team
	}
	if t.user != "" {
		s += "/" + t.user
	}
	return s
}

// tenantWire is the JSON shape of TenantCtx. Absent team/user encode as null.
type tenantWire struct {
	Env    string  `json:"env"`
	Tenant string  `json:"tenant"`
	Team   *string `json:"team"`
	User   *string `json:"user"`
}

// MarshalJSON encodes the context as {env, tenant, team, user}.
func (t TenantCtx) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.wire())
}

// UnmarshalJSON decodes and re-validates every component.
func (t *TenantCtx) UnmarshalJSON(data []byte) error {
	var w tenantWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed, err := NewTenantCtx(w.Env, w.Tenant)
	if err != nil {
		return err
	}
	if w.Team != nil {
		if parsed, err = parsed.WithTeam(*w.Team); err != nil {
			return err
		}
	}
	if w.User != nil {
		if parsed, err = parsed.WithUser(*w.User); err != nil {
			return err
		}
	}
	*t = parsed
	return nil
}

// AuditPayload returns the tenant_ctx object embedded in secret audit payloads.
func (t TenantCtx) AuditPayload() map[string]any {
	w := t.wire()
	return map[string]any{
		"env":    w.Env,
		"tenant": w.Tenant,
		"team":   w.Team,
		"user":   w.User,
	}
}

func (t TenantCtx) wire() tenantWire {
	w := tenantWire{Env: t.env, Tenant: t.tenant}
	if t.team != "" {
		team := t.team
		w.Team = &team
	}
	if t.user != "" {
		user := t.user
		w.User = &user
	}
	return w
}

func validateIdentifier(field, value string) error {
	if value == "" {
		return NewAppErrorWithDetails(ErrCodeConfigInvalidTenant,
			fmt.Sprintf("%s identifier must not be empty", field), nil,
			map[string]any{"field": field})
	}
	if len(value) > maxIdentifierLength || !identifierPattern.MatchString(value) {
		return NewAppErrorWithDetails(ErrCodeConfigInvalidTenant,
			fmt.Sprintf("%s identifier %q is not valid", field, value), nil,
			map[string]any{"field": field})
	}
	return nil
}
