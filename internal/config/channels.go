package config

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"eventgate/internal/channels/sms"
	"eventgate/internal/channels/timer"
	"eventgate/internal/channels/webhook"
)

// Channels is the decoded channel definition file. Every section is optional;
// a gateway serves only the channels that are defined.
//
//	webhook:
//	  base_path: /hooks
//	  routes:
//	    - path: /stripe
//	      secret_ref: STRIPE_SIGNING_SECRET
//	      topic_prefix: webhook.stripe
//	timer:
//	  schedules:
//	    - name: nightly
//	      cron: "0 2 * * *"
//	      topic: jobs.nightly
//	      payload: {full: true}
//	sms:
//	  source:
//	    phone_aliases: {"+15550001": support}
//	    signing_secret_ref: TWILIO_AUTH_TOKEN
type Channels struct {
	Webhook *webhook.EndpointConfig `yaml:"webhook"`
	Timer   timer.SchedulerConfig   `yaml:"timer"`
	SMS     *SMSChannel             `yaml:"sms"`
}

// SMSChannel is the Twilio section of the channel file.
type SMSChannel struct {
	Source sms.SourceConfig `yaml:"source"`
	Sink   *sms.SinkConfig  `yaml:"sink"`
}

// LoadChannels reads and validates the channel file at path. An empty path
// yields an empty definition.
func LoadChannels(path string) (*Channels, error) {
	if path == "" {
		return &Channels{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Type: ErrChannels, Message: "failed to read channel file " + path, Err: err}
	}
	return ParseChannels(raw)
}

// ParseChannels decodes a channel definition document. Unknown keys are
// rejected so that a misspelled section does not silently disable a channel.
func ParseChannels(raw []byte) (*Channels, error) {
	var ch Channels
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&ch); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigError{Type: ErrChannels, Message: "failed to decode channel file", Err: err}
	}
	if err := validator.New().Struct(ch); err != nil {
		return nil, &ConfigError{Type: ErrChannels, Message: "channel file validation failed", Err: err}
	}
	return &ch, nil
}
