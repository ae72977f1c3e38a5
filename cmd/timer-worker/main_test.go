package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventgate/internal/channels/timer"
	"eventgate/internal/components"
	"eventgate/internal/sink"
	"eventgate/internal/types"
)

var testSchedules = []timer.Schedule{{
	Name:    "nightly",
	Cron:    "0 2 * * *",
	Topic:   "jobs.nightly",
	Payload: json.RawMessage(`{"full":true}`),
}}

func newHandler(pub sink.Publisher) *Handler {
	return &Handler{
		Timer: components.NewTimer(components.Deps{
			DefaultTenant: types.MustTenantCtx("dev", "acme"),
		}),
		Schedules: testSchedules,
		Publisher: pub,
	}
}

func TestHandle_FiresAndPublishes(t *testing.T) {
	rec := &sink.Recording{}
	out, err := newHandler(rec).Handle(context.Background(), ScheduleEvent{Schedule: "nightly"})
	require.NoError(t, err)

	require.Len(t, rec.Envelopes, 1)
	env := rec.Envelopes[0]
	assert.Equal(t, "jobs.nightly", env.Topic)
	assert.Equal(t, "dev/acme", env.Tenant.String())
	assert.Contains(t, out, env.ID)
}

func TestHandle_EventTenantOverridesDefault(t *testing.T) {
	var event ScheduleEvent
	require.NoError(t, json.Unmarshal([]byte(`{"schedule":"nightly","tenant":{"env":"prod","tenant":"globex","team":"ops"}}`), &event))

	rec := &sink.Recording{}
	_, err := newHandler(rec).Handle(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, rec.Envelopes, 1)
	assert.Equal(t, "prod/globex/ops", rec.Envelopes[0].Tenant.String())
}

func TestHandle_Errors(t *testing.T) {
	t.Run("empty schedule", func(t *testing.T) {
		rec := &sink.Recording{}
		_, err := newHandler(rec).Handle(context.Background(), ScheduleEvent{})
		require.Error(t, err)
		assert.Empty(t, rec.Envelopes)
	})

	t.Run("unknown schedule", func(t *testing.T) {
		rec := &sink.Recording{}
		_, err := newHandler(rec).Handle(context.Background(), ScheduleEvent{Schedule: "hourly"})
		require.Error(t, err)
		assert.True(t, types.IsKind(err, types.KindConfig))
		assert.Empty(t, rec.Envelopes)
	})

	t.Run("publish failure", func(t *testing.T) {
		rec := &sink.Recording{Err: errors.New("queue down")}
		_, err := newHandler(rec).Handle(context.Background(), ScheduleEvent{Schedule: "nightly"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "queue down")
	})
}

func TestScheduleEvent_RejectsInvalidTenant(t *testing.T) {
	var event ScheduleEvent
	err := json.Unmarshal([]byte(`{"schedule":"nightly","tenant":{"env":"prod","tenant":"bad tenant"}}`), &event)
	assert.Error(t, err)
}
