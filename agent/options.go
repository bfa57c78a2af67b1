package agent

import (
	"github.com/voocel/mas/llm"
	"github.com/voocel/mas/tools"
)

// Option configures an agent when constructing it.
type Option func(*Config)

// WithDescription sets the agent's human-readable description.
func WithDescription(desc string) Option {
	return func(cfg *Config) {
		cfg.Description = desc
	}
}

// WithSystemPrompt replaces the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(cfg *Config) {
		cfg.SystemPrompt = prompt
	}
}

// WithSystemPromptFunc sets a dynamic system prompt resolved once per
// adapter iteration from the turn's SystemPromptContext, taking precedence
// over any static prompt set via WithSystemPrompt or WithPresetRole.
func WithSystemPromptFunc(fn SystemPromptFunc) Option {
	return func(cfg *Config) {
		cfg.SystemPromptFunc = fn
	}
}

// WithTools registers additional tools for the agent.
func WithTools(toolList ...tools.Tool) Option {
	return func(cfg *Config) {
		cfg.Tools = append(cfg.Tools, toolList...)
	}
}

// WithModel stores model on the agent's config, where Agent.Model returns
// it. The orchestrator does not use it to pick the model a turn calls; that
// comes from the agent's orchestrator.Binding.
func WithModel(model llm.ChatModel) Option {
	return func(cfg *Config) {
		cfg.Model = model
	}
}

// WithCanHandoffTo lists the agent ids this agent may transfer the
// conversation to.
func WithCanHandoffTo(agentIDs ...string) Option {
	return func(cfg *Config) {
		cfg.CanHandoffTo = append(cfg.CanHandoffTo, agentIDs...)
	}
}

// WithAllowedMCPServers restricts which MCP servers this agent may use
// tools from. Leaving it unset means unrestricted.
func WithAllowedMCPServers(serverIDs ...string) Option {
	return func(cfg *Config) {
		cfg.AllowedMCPServers = append(cfg.AllowedMCPServers, serverIDs...)
	}
}

// WithMaxIterations caps the per-agent iteration count for a turn.
func WithMaxIterations(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.MaxIterations = n
		}
	}
}

// WithMetadata attaches an opaque metadata value to the agent config.
func WithMetadata(key string, value interface{}) Option {
	return func(cfg *Config) {
		if cfg.Metadata == nil {
			cfg.Metadata = make(map[string]interface{})
		}
		cfg.Metadata[key] = value
	}
}

// WithPresetRole seeds the system prompt from a common role preset, without
// forcing callers to craft one manually.
func WithPresetRole(role string) Option {
	rolePrompts := map[string]string{
		"assistant":  "You are a helpful AI assistant. Provide accurate, helpful, and friendly responses.",
		"researcher": "You are an analytical researcher. Gather, compare, and synthesise reliable information.",
		"writer":     "You are a professional writer. Produce engaging, well-structured content tailored to the audience.",
		"analyst":    "You are a data analyst. Interpret data, highlight patterns, and suggest data-driven actions.",
		"developer":  "You are a pragmatic software engineer. Offer clear explanations, code snippets, and best practices.",
	}

	return func(cfg *Config) {
		if prompt, ok := rolePrompts[role]; ok {
			cfg.SystemPrompt = prompt
		} else {
			cfg.SystemPrompt = "You are a " + role + ". Respond accordingly with clarity and professionalism."
		}
	}
}
