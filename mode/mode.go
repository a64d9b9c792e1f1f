// Package mode defines the declarative discussion mode schema (agents and
// workflow topology), loads catalogs of modes from YAML and validates them
// eagerly. Values handed out by a Catalog are deep copies, so a loaded catalog
// is effectively immutable for the lifetime of the process.
package mode

import "slices"

// WorkflowKind selects the topology family of a mode.
type WorkflowKind string

const (
	// WorkflowSequential runs a loop group of agents in fixed order for N
	// rounds followed by a single final agent.
	WorkflowSequential WorkflowKind = "sequential"
	// WorkflowMixed runs diverge agents concurrently for N rounds followed by
	// a single integrate agent.
	WorkflowMixed WorkflowKind = "mixed"
)

// PhaseTag marks a step of a mixed workflow.
type PhaseTag string

const (
	// PhaseDiverge marks the step whose agents run concurrently each round.
	PhaseDiverge PhaseTag = "diverge"
	// PhaseIntegrate marks the step whose single agent synthesizes the result.
	PhaseIntegrate PhaseTag = "integrate"
)

// AgentSpec is the static configuration of one persona.
type AgentSpec struct {
	ID                 string   `yaml:"id" json:"id"`
	Name               string   `yaml:"name" json:"name"`
	Role               string   `yaml:"role" json:"role"`
	Persona            string   `yaml:"persona" json:"persona"`
	Color              string   `yaml:"color" json:"color"`
	Avatar             string   `yaml:"avatar" json:"avatar"`
	Temperature        float64  `yaml:"temperature" json:"temperature"`
	SystemPrompt       string   `yaml:"system_prompt" json:"system_prompt"`
	UserPromptTemplate string   `yaml:"user_prompt_template" json:"user_prompt_template"`
	Tools              []string `yaml:"tools" json:"tools"`
}

// Step names one or more agents plus the agents whose latest output it may see.
type Step struct {
	Agent       string   `yaml:"agent,omitempty" json:"agent,omitempty"`
	Agents      []string `yaml:"agents,omitempty" json:"agents,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Context     []string `yaml:"context,omitempty" json:"context,omitempty"`
	Phase       PhaseTag `yaml:"phase,omitempty" json:"phase,omitempty"`
	Parallel    bool     `yaml:"parallel,omitempty" json:"parallel,omitempty"`
}

// AgentIDs returns the agents named by the step, Agent first.
func (s Step) AgentIDs() []string {
	ids := make([]string, 0, len(s.Agents)+1)
	if s.Agent != "" {
		ids = append(ids, s.Agent)
	}
	for _, id := range s.Agents {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Workflow is the topology description of a mode.
type Workflow struct {
	Type   WorkflowKind `yaml:"type" json:"type"`
	Rounds int          `yaml:"rounds" json:"rounds"`
	Steps  []Step       `yaml:"steps" json:"steps"`
}

// Presentation carries optional catalog metadata shown by template listings.
type Presentation struct {
	Icon          string   `yaml:"icon,omitempty" json:"icon,omitempty"`
	UseCases      []string `yaml:"use_cases,omitempty" json:"use_cases,omitempty"`
	EstimatedTime string   `yaml:"estimated_time,omitempty" json:"estimated_time,omitempty"`
}

// Mode is a complete discussion mode: personas plus workflow topology.
type Mode struct {
	ID           string       `yaml:"-" json:"id"`
	Name         string       `yaml:"name" json:"name"`
	Description  string       `yaml:"description" json:"description"`
	Agents       []AgentSpec  `yaml:"agents" json:"agents"`
	Workflow     Workflow     `yaml:"workflow" json:"workflow"`
	Presentation Presentation `yaml:"template,omitempty" json:"template,omitempty"`
}

// Agent returns the spec of the agent with the given id.
func (m Mode) Agent(id string) (AgentSpec, bool) {
	for _, a := range m.Agents {
		if a.ID == id {
			return a.Clone(), true
		}
	}
	return AgentSpec{}, false
}

// AgentName returns the display name of an agent, falling back to its id.
func (m Mode) AgentName(id string) string {
	if a, ok := m.Agent(id); ok && a.Name != "" {
		return a.Name
	}
	return id
}

// Clone returns a deep copy.
func (m Mode) Clone() Mode {
	c := m
	c.Agents = make([]AgentSpec, len(m.Agents))
	for i, a := range m.Agents {
		c.Agents[i] = a.Clone()
	}
	c.Workflow.Steps = make([]Step, len(m.Workflow.Steps))
	for i, s := range m.Workflow.Steps {
		c.Workflow.Steps[i] = s.Clone()
	}
	c.Presentation.UseCases = slices.Clone(m.Presentation.UseCases)
	return c
}

// Clone returns a deep copy.
func (a AgentSpec) Clone() AgentSpec {
	c := a
	c.Tools = slices.Clone(a.Tools)
	return c
}

// Clone returns a deep copy.
func (s Step) Clone() Step {
	c := s
	c.Agents = slices.Clone(s.Agents)
	c.Context = slices.Clone(s.Context)
	return c
}
