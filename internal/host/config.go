package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"eventgate/internal/types"
)

const schemaBaseURL = "https://eventgate.schemas.local/components/"

// ConfigSchema is a compiled JSON Schema for a component's configuration.
type ConfigSchema struct {
	schema *jsonschema.Schema
}

// CompileSchema compiles src as a draft 2020-12 schema registered under name.
func CompileSchema(name, src string) (*ConfigSchema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := schemaBaseURL + name + ".schema.json"
	if err := c.AddResource(url, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("schema %s load failed: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s compile failed: %w", name, err)
	}
	return &ConfigSchema{schema: compiled}, nil
}

// MustCompileSchema panics when src does not compile. Component schemas are
// package constants.
func MustCompileSchema(name, src string) *ConfigSchema {
	s, err := CompileSchema(name, src)
	if err != nil {
		panic(err)
	}
	return s
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidateStruct runs the validate tags of v and reports the first failure
// as a Config error.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return types.NewAppErrorWithDetails(types.ErrCodeConfigInvalid,
			fmt.Sprintf("field %s failed %s validation", fe.Namespace(), fe.Tag()), nil,
			map[string]any{"field": fe.Namespace(), "rule": fe.Tag()})
	}
	return types.NewAppError(types.ErrCodeConfigInvalid, "validation failed", err)
}

// DecodeConfig checks raw against schema (when non-nil), decodes it into dst
// and validates the result.
func DecodeConfig(raw []byte, schema *ConfigSchema, dst any) error {
	if schema != nil {
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return types.NewAppError(types.ErrCodeConfigInvalid, "config is not valid JSON", err)
		}
		if err := schema.schema.Validate(doc); err != nil {
			return types.NewAppError(types.ErrCodeConfigInvalid, "config does not match schema: "+schemaMessage(err), nil)
		}
	}
	return DecodeInput(raw, dst)
}

// DecodeInput decodes an operation input into dst and validates it.
func DecodeInput(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return types.NewAppError(types.ErrCodeConfigInvalid, "invalid input", err)
	}
	return ValidateStruct(dst)
}

// Validate is the usual validate_config implementation: DecodeConfig into
// dst, reporting the decoded config on success.
func Validate(raw []byte, schema *ConfigSchema, dst any) ValidationResult {
	if err := DecodeConfig(raw, schema, dst); err != nil {
		return ValidationResult{Valid: false, Error: err.Error()}
	}
	return ValidationResult{Valid: true, Config: dst}
}

func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		loc := leaf.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return loc + ": " + leaf.Message
	}
	return err.Error()
}
