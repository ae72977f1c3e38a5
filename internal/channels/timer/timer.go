// Package timer fires named schedules as event envelopes.
package timer

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"eventgate/internal/types"
)

const (
	SourceName = "timer-provider"
	EventType  = "com.greentic.timer.generic.v1"
)

// Schedule is a named timer definition. Firing it publishes Payload on Topic.
type Schedule struct {
	Name    string          `json:"name" yaml:"name" validate:"required"`
	Cron    string          `json:"cron" yaml:"cron" validate:"required"`
	Topic   string          `json:"topic" yaml:"topic" validate:"required"`
	Payload json.RawMessage `json:"payload" yaml:"-"`
}

// UnmarshalYAML decodes a schedule from the channels file, where the payload
// is written as an inline YAML document.
func (s *Schedule) UnmarshalYAML(node *yaml.Node) error {
	var doc struct {
		Name    string `yaml:"name"`
		Cron    string `yaml:"cron"`
		Topic   string `yaml:"topic"`
		Payload any    `yaml:"payload"`
	}
	if err := node.Decode(&doc); err != nil {
		return err
	}
	payload, err := json.Marshal(doc.Payload)
	if err != nil {
		return types.ConfigErrorf(types.ErrCodeConfigInvalid, "schedule %s: payload is not JSON-compatible: %v", doc.Name, err)
	}
	*s = Schedule{Name: doc.Name, Cron: doc.Cron, Topic: doc.Topic, Payload: payload}
	return nil
}

// SchedulerConfig is the ordered set of schedules; names are unique.
type SchedulerConfig struct {
	Schedules []Schedule `json:"schedules" yaml:"schedules" validate:"unique=Name,dive"`
}

// Source fires schedules from a fixed configuration.
type Source struct {
	config SchedulerConfig
}

// NewSource returns a Source for cfg.
func NewSource(cfg SchedulerConfig) *Source {
	return &Source{config: cfg}
}

// Config returns the scheduler configuration.
func (s *Source) Config() SchedulerConfig {
	return s.config
}

// Lookup finds a schedule by exact name.
func (s *Source) Lookup(name string) (Schedule, bool) {
	for _, sch := range s.config.Schedules {
		if sch.Name == name {
			return sch, true
		}
	}
	return Schedule{}, false
}

// Fire builds the envelope for the schedule called name. The envelope carries
// the schedule's topic and payload verbatim; an unknown name is a Config error.
func (s *Source) Fire(tenant types.TenantCtx, name string) (types.EventEnvelope, error) {
	sch, ok := s.Lookup(name)
	if !ok {
		return types.EventEnvelope{}, types.NewAppErrorWithDetails(types.ErrCodeConfigUnknownSchedule,
			"unknown schedule "+name, nil, map[string]any{"schedule": name})
	}

	md := types.Metadata{}
	md.Set(types.MetaScheduleName, sch.Name)
	md.Set(types.MetaCron, sch.Cron)
	return types.NewEvent(sch.Topic, EventType, SourceName, tenant, sch.Name, "", sch.Payload, md), nil
}
