package workflow

import (
	"fmt"
	"sort"
	"time"

	"github.com/fyrsmithlabs/triad/internal/config"
)

// ModelConfig describes one AI model endpoint available to agents.
// Immutable once loaded; looked up by id.
type ModelConfig struct {
	ID                string        `json:"id"`
	Provider          string        `json:"provider"`
	Endpoint          string        `json:"endpoint"`
	Model             string        `json:"model"`
	APIKey            config.Secret `json:"api_key"` // Secret redacts on marshal
	Temperature       float64       `json:"temperature"`
	MaxTokens         int           `json:"max_tokens"`
	Timeout           time.Duration `json:"timeout"`
	RequestsPerMinute int           `json:"requests_per_minute"`
	MaxRetries        int           `json:"max_retries"`
	Enabled           bool          `json:"enabled"`
}

// AgentConfig binds a pipeline role to a model with a system prompt.
// Immutable once loaded; looked up by id or resolved by role.
type AgentConfig struct {
	ID           string `json:"id"`
	Role         Role   `json:"role"`
	SystemPrompt string `json:"system_prompt"`
	ModelID      string `json:"model_id"`
	Enabled      bool   `json:"enabled"`
}

// ModelsFromConfig converts loader entries into workflow model configs.
// Disabled entries are carried with Enabled=false so lookups can report
// them as disabled rather than unknown.
func ModelsFromConfig(cfgs []config.ModelConfig) []ModelConfig {
	out := make([]ModelConfig, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, ModelConfig{
			ID:                c.ID,
			Provider:          c.Provider,
			Endpoint:          c.Endpoint,
			Model:             c.Model,
			APIKey:            c.APIKey,
			Temperature:       c.Temperature,
			MaxTokens:         c.MaxTokens,
			Timeout:           c.Timeout.Duration(),
			RequestsPerMinute: c.RequestsPerMinute,
			MaxRetries:        c.MaxRetries,
			Enabled:           !c.Disabled,
		})
	}
	return out
}

// AgentsFromConfig converts loader entries into workflow agent configs.
func AgentsFromConfig(cfgs []config.AgentConfig) []AgentConfig {
	out := make([]AgentConfig, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, AgentConfig{
			ID:           c.ID,
			Role:         Role(c.Role),
			SystemPrompt: c.SystemPrompt,
			ModelID:      c.ModelID,
			Enabled:      !c.Disabled,
		})
	}
	return out
}

// ModelRegistry resolves model configurations by id. Instance-owned and
// immutable after construction; safe for concurrent reads.
type ModelRegistry struct {
	models map[string]*ModelConfig
}

// NewModelRegistry builds a registry from the supplied models.
func NewModelRegistry(models []ModelConfig) *ModelRegistry {
	r := &ModelRegistry{models: make(map[string]*ModelConfig, len(models))}
	for i := range models {
		m := models[i]
		r.models[m.ID] = &m
	}
	return r
}

// Get returns the enabled model registered under id. A missing or
// disabled model is a configuration error.
func (r *ModelRegistry) Get(id string) (*ModelConfig, error) {
	m, ok := r.models[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingModel, id)
	}
	if !m.Enabled {
		return nil, fmt.Errorf("%w: %q is disabled", ErrMissingModel, id)
	}
	return m, nil
}

// List returns all registered models ordered by id.
func (r *ModelRegistry) List() []*ModelConfig {
	out := make([]*ModelConfig, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AgentRegistry resolves agent configurations by id and by role.
// Instance-owned and immutable after construction; safe for concurrent
// reads.
type AgentRegistry struct {
	agents map[string]*AgentConfig
}

// NewAgentRegistry builds a registry from the supplied agents.
func NewAgentRegistry(agents []AgentConfig) *AgentRegistry {
	r := &AgentRegistry{agents: make(map[string]*AgentConfig, len(agents))}
	for i := range agents {
		a := agents[i]
		r.agents[a.ID] = &a
	}
	return r
}

// Get returns the agent registered under id.
func (r *AgentRegistry) Get(id string) (*AgentConfig, error) {
	a, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent not found: %q", id)
	}
	return a, nil
}

// EnabledByRole returns the single enabled agent configured for role. The
// pipeline needs exactly one agent per phase, so zero enabled agents for
// the role, or more than one, is a configuration error.
func (r *AgentRegistry) EnabledByRole(role Role) (*AgentConfig, error) {
	var found *AgentConfig
	for _, a := range r.agents {
		if a.Role != role || !a.Enabled {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("multiple enabled agents for role %q", role)
		}
		found = a
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingAgent, role)
	}
	return found, nil
}

// List returns all registered agents ordered by id.
func (r *AgentRegistry) List() []*AgentConfig {
	out := make([]*AgentConfig, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
