package secrets

import (
	"fmt"

	"eventgate/internal/types"
)

// TenantKey renders "<env>/<tenant>/<team or _>".
func TenantKey(t types.TenantCtx) string {
	team, ok := t.Team()
	if !ok {
		team = "_"
	}
	return fmt.Sprintf("%s/%s/%s", t.Env(), t.Tenant(), team)
}

// ProviderCredentialsKey is the default key holding a provider's credentials
// for a tenant: "events/<provider>/<tenant key>/credentials".
func ProviderCredentialsKey(t types.TenantCtx, provider string) string {
	return fmt.Sprintf("events/%s/%s/credentials", provider, TenantKey(t))
}
