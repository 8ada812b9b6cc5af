// Package workflow compiles the declarative status-progression config into
// an immutable decision structure and validates status transitions against
// it, per spec.md §4.2. The config shape is loaded with spf13/viper the way
// internal/labelmutex/policy.go in the teacher loads its mutex-group policy.
package workflow

import "github.com/taskmcp/taskmcp/internal/types"

// RawConfig is the on-disk shape of workflow.yaml, unmarshalled directly by
// viper via mapstructure tags.
type RawConfig struct {
	StatusProgression struct {
		Tasks    RawEntityConfig `mapstructure:"tasks"`
		Features RawEntityConfig `mapstructure:"features"`
		Projects RawEntityConfig `mapstructure:"projects"`
	} `mapstructure:"status_progression"`
	StatusValidation ValidationConfig `mapstructure:"status_validation"`
}

// RawEntityConfig is the status_progression.{tasks,features,projects} shape
// of spec.md §4.2.
type RawEntityConfig struct {
	Flows                map[string][]string `mapstructure:"flows"`
	DefaultFlow          string              `mapstructure:"default_flow"`
	FlowMappings         []RawFlowMapping    `mapstructure:"flow_mappings"`
	EmergencyTransitions []string            `mapstructure:"emergency_transitions"`
	TerminalStatuses     []string            `mapstructure:"terminal_statuses"`
}

// RawFlowMapping is one flow_mappings entry: a tag subset that selects Flow.
type RawFlowMapping struct {
	Tags []string `mapstructure:"tags"`
	Flow string   `mapstructure:"flow"`
}

// ValidationConfig is the status_validation shape of spec.md §4.2.
type ValidationConfig struct {
	EnforceSequential     bool `mapstructure:"enforce_sequential"`
	AllowBackward         bool `mapstructure:"allow_backward"`
	AllowEmergency        bool `mapstructure:"allow_emergency"`
	ValidatePrerequisites bool `mapstructure:"validate_prerequisites"`
}

// defaultConfig is used when no workflow.yaml is found under
// AGENT_CONFIG_DIR, so the server is usable with zero configuration.
func defaultConfig() *RawConfig {
	cfg := &RawConfig{}
	cfg.StatusProgression.Tasks = RawEntityConfig{
		Flows: map[string][]string{
			"default_flow": {"backlog", "in-progress", "in-review", "completed"},
		},
		DefaultFlow:          "default_flow",
		EmergencyTransitions: []string{"blocked", "on-hold", "cancelled"},
		TerminalStatuses:     []string{"completed", "cancelled"},
	}
	entityFlow := RawEntityConfig{
		Flows: map[string][]string{
			"default_flow": {"planning", "in-development", "testing", "completed"},
		},
		DefaultFlow:          "default_flow",
		EmergencyTransitions: []string{"blocked", "on-hold", "cancelled"},
		TerminalStatuses:     []string{"completed", "cancelled"},
	}
	cfg.StatusProgression.Features = entityFlow
	cfg.StatusProgression.Projects = entityFlow
	cfg.StatusValidation = ValidationConfig{
		EnforceSequential:     true,
		AllowBackward:         false,
		AllowEmergency:        true,
		ValidatePrerequisites: true,
	}
	return cfg
}

func toStatusSlice(in []string) []types.Status {
	out := make([]types.Status, len(in))
	for i, s := range in {
		out[i] = types.Status(s)
	}
	return out
}
