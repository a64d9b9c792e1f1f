package mode

// Builder assembles a Mode programmatically. Build validates the result, so a
// Mode obtained from a Builder is always structurally consistent.
//
// Example:
//
//	m, err := mode.NewBuilder("dialectical_mode").
//	    Name("Dialectical Analysis").
//	    Agent(supporter).Agent(critic).Agent(synthesizer).
//	    Sequential(2).
//	    Step(mode.Step{Agent: "supporter", Context: []string{"critic"}}).
//	    Step(mode.Step{Agent: "critic", Context: []string{"supporter"}}).
//	    Step(mode.Step{Agent: "synthesizer", Context: []string{"supporter", "critic"}}).
//	    Build()
type Builder struct {
	m Mode
}

// NewBuilder starts a mode with the given id.
func NewBuilder(id string) *Builder {
	return &Builder{m: Mode{ID: id, Name: id}}
}

// Name sets the display name.
func (b *Builder) Name(name string) *Builder { b.m.Name = name; return b }

// Description sets the mode description used by reports and templates.
func (b *Builder) Description(d string) *Builder { b.m.Description = d; return b }

// Agent appends an agent spec.
func (b *Builder) Agent(a AgentSpec) *Builder {
	b.m.Agents = append(b.m.Agents, a.Clone())
	return b
}

// Sequential selects the sequential topology with the given number of rounds.
func (b *Builder) Sequential(rounds int) *Builder {
	b.m.Workflow.Type = WorkflowSequential
	b.m.Workflow.Rounds = rounds
	return b
}

// Mixed selects the diverge/integrate topology with the given number of rounds.
func (b *Builder) Mixed(rounds int) *Builder {
	b.m.Workflow.Type = WorkflowMixed
	b.m.Workflow.Rounds = rounds
	return b
}

// Step appends a workflow step.
func (b *Builder) Step(s Step) *Builder {
	b.m.Workflow.Steps = append(b.m.Workflow.Steps, s.Clone())
	return b
}

// Diverge appends the diverge step of a mixed workflow.
func (b *Builder) Diverge(agentIDs ...string) *Builder {
	return b.Step(Step{Agents: agentIDs, Phase: PhaseDiverge, Parallel: true})
}

// Integrate appends the integrate step of a mixed workflow.
func (b *Builder) Integrate(agentID string, context ...string) *Builder {
	return b.Step(Step{Agents: []string{agentID}, Context: context, Phase: PhaseIntegrate})
}

// Present sets template listing metadata.
func (b *Builder) Present(p Presentation) *Builder { b.m.Presentation = p; return b }

// Build validates and returns a copy of the mode.
func (b *Builder) Build() (Mode, error) {
	m := b.m.Clone()
	if err := Validate(m); err != nil {
		return Mode{}, err
	}
	return m, nil
}
