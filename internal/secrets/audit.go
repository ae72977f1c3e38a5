package secrets

import (
	"encoding/json"
	"time"

	"eventgate/internal/types"
)

// Audit topics. These strings are a stable wire contract.
const (
	TopicPut             = "greentic.secrets.put"
	TopicDelete          = "greentic.secrets.delete"
	TopicRotateRequested = "greentic.secrets.rotate.requested"
	TopicRotateCompleted = "greentic.secrets.rotate.completed"
	TopicMissingDetected = "greentic.secrets.missing.detected"
	AuditEventType       = "com.greentic.secrets.audit.v1"
	AuditSchemaVersion   = "v1"
	ResultSuccess        = "success"
	ResultFailure        = "failure"
	auditTimestampLayout = "2006-01-02T15:04:05Z"
)

// PutEvent records a successful read or write of key. The payload never
// carries the secret value.
func PutEvent(key, scope string, tenant types.TenantCtx, source string) types.EventEnvelope {
	return auditEvent(TopicPut, source, tenant, resultPayload(key, scope, tenant, ResultSuccess))
}

// DeleteEvent records a deletion of key with the given result.
func DeleteEvent(key, scope string, tenant types.TenantCtx, source, result string) types.EventEnvelope {
	return auditEvent(TopicDelete, source, tenant, resultPayload(key, scope, tenant, result))
}

// RotateRequestedEvent records a rotation request. errMsg is embedded when non-empty.
func RotateRequestedEvent(key, scope, rotationID, result string, tenant types.TenantCtx, source, errMsg string) types.EventEnvelope {
	return auditEvent(TopicRotateRequested, source, tenant, rotationPayload(key, scope, rotationID, result, errMsg, tenant))
}

// RotateCompletedEvent records the outcome of a rotation. errMsg is embedded when non-empty.
func RotateCompletedEvent(key, scope, rotationID, result string, tenant types.TenantCtx, source, errMsg string) types.EventEnvelope {
	return auditEvent(TopicRotateCompleted, source, tenant, rotationPayload(key, scope, rotationID, result, errMsg, tenant))
}

// MissingDetectedEvent records that key was absent when detectedBy needed it
// for the activity described by context.
func MissingDetectedEvent(key, scope string, tenant types.TenantCtx, detectedBy, context, source string) types.EventEnvelope {
	payload := map[string]any{
		"schema_version": AuditSchemaVersion,
		"key":            key,
		"scope":          scope,
		"detected_by":    detectedBy,
		"context":        context,
		"timestamp_utc":  auditTimestamp(),
		"tenant_ctx":     tenant.AuditPayload(),
	}
	return auditEvent(TopicMissingDetected, source, tenant, payload)
}

func resultPayload(key, scope string, tenant types.TenantCtx, result string) map[string]any {
	return map[string]any{
		"schema_version": AuditSchemaVersion,
		"key":            key,
		"scope":          scope,
		"tenant_ctx":     tenant.AuditPayload(),
		"result":         result,
		"timestamp_utc":  auditTimestamp(),
	}
}

func rotationPayload(key, scope, rotationID, result, errMsg string, tenant types.TenantCtx) map[string]any {
	p := map[string]any{
		"schema_version": AuditSchemaVersion,
		"key":            key,
		"scope":          scope,
		"rotation_id":    rotationID,
		"result":         result,
		"timestamp_utc":  auditTimestamp(),
		"tenant_ctx":     tenant.AuditPayload(),
	}
	if errMsg != "" {
		p["error"] = errMsg
	}
	return p
}

func auditEvent(topic, source string, tenant types.TenantCtx, payload map[string]any) types.EventEnvelope {
	// Payloads are built from strings and nested string maps only.
	raw, _ := json.Marshal(payload)
	return types.NewEvent(topic, AuditEventType, source, tenant, "", "", raw, nil)
}

func auditTimestamp() string {
	return time.Now().UTC().Truncate(time.Second).Format(auditTimestampLayout)
}
