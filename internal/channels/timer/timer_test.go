package timer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"eventgate/internal/types"
)

func sampleSource() *Source {
	return NewSource(SchedulerConfig{Schedules: []Schedule{
		{Name: "nightly", Cron: "0 2 * * *", Topic: "timer.nightly.report", Payload: json.RawMessage(`{"kind":"report","days":7}`)},
		{Name: "hourly", Cron: "0 * * * *", Topic: "timer.hourly", Payload: json.RawMessage(`null`)},
	}})
}

func TestFire_KnownSchedule(t *testing.T) {
	tenant := types.MustTenantCtx("prod", "acme")
	env, err := sampleSource().Fire(tenant, "nightly")
	require.NoError(t, err)

	assert.Equal(t, "timer.nightly.report", env.Topic)
	assert.Equal(t, EventType, env.Type)
	assert.Equal(t, SourceName, env.Source)
	assert.Equal(t, "nightly", env.SubjectValue())
	assert.Nil(t, env.CorrelationID)
	assert.Equal(t, tenant, env.Tenant)
	assert.JSONEq(t, `{"kind":"report","days":7}`, string(env.Payload))
	assert.Equal(t, types.Metadata{"schedule_name": "nightly", "cron": "0 2 * * *"}, env.Metadata)
}

func TestFire_FreshIDs(t *testing.T) {
	src := sampleSource()
	tenant := types.MustTenantCtx("prod", "acme")
	a, err := src.Fire(tenant, "hourly")
	require.NoError(t, err)
	b, err := src.Fire(tenant, "hourly")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestFire_UnknownSchedule(t *testing.T) {
	_, err := sampleSource().Fire(types.MustTenantCtx("prod", "acme"), "Nightly")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindConfig))
	assert.Equal(t, "configuration error: unknown schedule Nightly", err.Error())
}

func TestScheduleYAML(t *testing.T) {
	doc := `
schedules:
  - name: nightly
    cron: "0 2 * * *"
    topic: timer.nightly
    payload:
      kind: report
      days: 7
  - name: bare
    cron: "* * * * *"
    topic: timer.bare
`
	var cfg SchedulerConfig
	require.NoError(t, yaml.Unmarshal([]byte(doc), &cfg))
	require.Len(t, cfg.Schedules, 2)
	assert.Equal(t, "nightly", cfg.Schedules[0].Name)
	assert.JSONEq(t, `{"kind":"report","days":7}`, string(cfg.Schedules[0].Payload))
	assert.Equal(t, "null", string(cfg.Schedules[1].Payload))
}
