package agent

import (
	"github.com/voocel/mas/llm"
	"github.com/voocel/mas/tools"
)

// SystemPromptContext carries the turn-scoped values a dynamic system
// prompt function may use to tailor its output to the conversation it's
// running in.
type SystemPromptContext struct {
	ConversationID string
	AgentID        string
	UserID         string
}

// SystemPromptFunc computes a system prompt from the current turn's
// context, resolved once per adapter iteration in place of a static string.
type SystemPromptFunc func(ctx SystemPromptContext) string

// Config defines an agent's declarative configuration: model, system
// prompt, tools, and routing, immutable for a runtime's lifetime.
type Config struct {
	ID           string
	Name         string
	Description  string
	SystemPrompt string
	// SystemPromptFunc, when set, takes precedence over SystemPrompt; the
	// function form is resolved fresh on every adapter iteration.
	SystemPromptFunc SystemPromptFunc
	Tools            []tools.Tool
	Model            llm.ChatModel
	CanHandoffTo     []string
	// AllowedMCPServers restricts which configured MCP servers this agent's
	// bridged tools may come from; nil means every server the caller wired.
	AllowedMCPServers []string
	MaxIterations    int
	Metadata         map[string]interface{}
}

// Agent is a lightweight descriptor and does not execute tools or call
// models itself — it's handed to an Orchestrator, which does.
type Agent struct {
	config Config
}

// New creates an Agent with options.
func New(id, name string, opts ...Option) *Agent {
	cfg := Config{
		ID:   id,
		Name: name,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Agent{config: cfg}
}

// NewWithConfig creates an Agent from a config struct.
func NewWithConfig(cfg Config) *Agent {
	return &Agent{config: cfg}
}

func (a *Agent) ID() string {
	return a.config.ID
}

func (a *Agent) Name() string {
	return a.config.Name
}

func (a *Agent) Description() string {
	return a.config.Description
}

// SystemPrompt returns the agent's static system prompt string. If the
// agent was configured with a SystemPromptFunc instead, this returns "";
// callers driving a turn should use ResolveSystemPrompt, which handles
// both forms.
func (a *Agent) SystemPrompt() string {
	return a.config.SystemPrompt
}

// ResolveSystemPrompt resolves the prompt for one adapter iteration,
// calling SystemPromptFunc with the turn's context when one is set and
// falling back to the static SystemPrompt otherwise.
func (a *Agent) ResolveSystemPrompt(ctx SystemPromptContext) string {
	if a.config.SystemPromptFunc != nil {
		return a.config.SystemPromptFunc(ctx)
	}
	return a.config.SystemPrompt
}

func (a *Agent) Tools() []tools.Tool {
	return append([]tools.Tool(nil), a.config.Tools...)
}

// Model returns the ChatModel set on the agent's config, or nil if none was
// set. The orchestrator does not read it: a turn calls the Adapter of the
// agent's orchestrator.Binding.
func (a *Agent) Model() llm.ChatModel {
	return a.config.Model
}

// CanHandoffTo lists the agent ids this agent may transfer the conversation
// to. Used by the handoff package to synthesize handoff_to_<id> tools.
func (a *Agent) CanHandoffTo() []string {
	return append([]string(nil), a.config.CanHandoffTo...)
}

// AllowedMCPServers lists the MCP server ids this agent may use tools
// from, or nil if the agent is unrestricted. Callers pass this to
// mcp.ToolsForServers when assembling the agent's tool set.
func (a *Agent) AllowedMCPServers() []string {
	if a.config.AllowedMCPServers == nil {
		return nil
	}
	return append([]string(nil), a.config.AllowedMCPServers...)
}

// MaxIterations returns the per-agent iteration cap, or 0 if unset (the
// orchestrator then falls back to its own default).
func (a *Agent) MaxIterations() int {
	return a.config.MaxIterations
}

func (a *Agent) Metadata() map[string]interface{} {
	if a.config.Metadata == nil {
		return nil
	}
	cp := make(map[string]interface{}, len(a.config.Metadata))
	for k, v := range a.config.Metadata {
		cp[k] = v
	}
	return cp
}
