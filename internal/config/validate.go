package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// configSchema constrains the tunables to values the engine can actually
// run with. Validation happens on every load, including hot reloads.
const configSchema = `{
	"type": "object",
	"properties": {
		"reader": {
			"type": "object",
			"properties": {
				"chapters_per_window":  {"type": "integer", "minimum": 1},
				"window_radius":        {"type": "integer", "minimum": 1},
				"buffer_size":          {"type": "integer", "minimum": 1, "maximum": 64},
				"edge_threshold_pages": {"type": "integer", "minimum": 0},
				"shift_debounce_ms":    {"type": "integer", "minimum": 0},
				"font_size":            {"type": "number", "exclusiveMinimum": 0},
				"preview_runes":        {"type": "integer", "minimum": 0}
			}
		},
		"library": {
			"type": "object",
			"properties": {
				"path": {"type": "string"}
			}
		}
	}
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.json", bytes.NewReader([]byte(configSchema))); err != nil {
		panic(fmt.Sprintf("config: add schema resource: %v", err))
	}
	schema, err := compiler.Compile("config.json")
	if err != nil {
		panic(fmt.Sprintf("config: compile schema: %v", err))
	}
	return schema
}

// Validate checks cfg against the config schema.
func Validate(cfg *Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode config for validation: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("config does not match schema: %w", err)
	}
	return nil
}
