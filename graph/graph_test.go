package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roundtable/mode"
)

type toolSet map[string]bool

func (s toolSet) Has(id string) bool { return s[id] }

func agentSpec(id string, tools ...string) mode.AgentSpec {
	return mode.AgentSpec{ID: id, Name: id, UserPromptTemplate: "{topic}", Temperature: 0.7, Tools: tools}
}

func TestBuild_DefaultDialectical(t *testing.T) {
	m, err := mode.DefaultCatalog().Get("dialectical_mode")
	require.NoError(t, err)

	plan, err := Build(m)
	require.NoError(t, err)

	assert.Equal(t, mode.WorkflowSequential, plan.Kind)
	assert.Equal(t, 2, plan.Rounds)
	require.Len(t, plan.Round, 2)
	assert.Equal(t, "supporter", plan.Round[0].AgentID)
	assert.Equal(t, []string{"critic"}, plan.Round[0].Context)
	assert.Equal(t, "critic", plan.Round[1].AgentID)
	assert.Equal(t, []string{"supporter"}, plan.Round[1].Context)
	require.NotNil(t, plan.Final)
	assert.Equal(t, "synthesizer", plan.Final.AgentID)
	assert.Equal(t, StageFinal, plan.Final.Stage)
	assert.Equal(t, 5, plan.ExpectedMessages())
	assert.Equal(t, []string{"supporter", "critic", "synthesizer"}, plan.AgentIDs())
}

func TestBuild_DefaultBrainstorm(t *testing.T) {
	m, err := mode.DefaultCatalog().Get("brainstorm_mode")
	require.NoError(t, err)

	plan, err := Build(m)
	require.NoError(t, err)

	assert.Equal(t, mode.WorkflowMixed, plan.Kind)
	require.Len(t, plan.Round, 3)
	for _, n := range plan.Round {
		assert.Equal(t, StageDiverge, n.Stage)
		assert.Len(t, n.Peers, 2)
		assert.NotContains(t, n.Peers, n.AgentID)
		assert.Empty(t, n.Context)
	}
	require.NotNil(t, plan.Final)
	assert.Equal(t, "integrator", plan.Final.AgentID)
	assert.Equal(t, StageIntegrate, plan.Final.Stage)
	assert.ElementsMatch(t, []string{"visionary", "pragmatist", "futurist"}, plan.Final.Context)
	assert.Equal(t, 7, plan.ExpectedMessages())
}

func TestBuild_SingleStepSequentialHasNoFinal(t *testing.T) {
	m, err := mode.NewBuilder("solo").
		Agent(agentSpec("a")).
		Sequential(3).
		Step(mode.Step{Agent: "a"}).
		Build()
	require.NoError(t, err)

	plan, err := Build(m)
	require.NoError(t, err)
	assert.Nil(t, plan.Final)
	assert.Len(t, plan.Round, 1)
	assert.Equal(t, 3, plan.ExpectedMessages())
}

func TestBuild_InvalidTopology(t *testing.T) {
	m := mode.Mode{
		ID:     "broken",
		Agents: []mode.AgentSpec{agentSpec("a")},
		Workflow: mode.Workflow{
			Type:   mode.WorkflowMixed,
			Rounds: 1,
			Steps:  []mode.Step{{Agents: []string{"a"}, Phase: mode.PhaseDiverge}},
		},
	}

	_, err := Build(m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mode.ErrInvalidConfig))
}

func TestBuild_UnknownStepAgent(t *testing.T) {
	m := mode.Mode{
		ID:     "broken",
		Agents: []mode.AgentSpec{agentSpec("a")},
		Workflow: mode.Workflow{
			Type:   mode.WorkflowSequential,
			Rounds: 1,
			Steps:  []mode.Step{{Agent: "a"}, {Agent: "ghost"}},
		},
	}

	_, err := Build(m)
	assert.ErrorIs(t, err, mode.ErrInvalidConfig)
}

func TestBuild_IntegratorMustNotDiverge(t *testing.T) {
	m := mode.Mode{
		ID:     "loop",
		Agents: []mode.AgentSpec{agentSpec("a"), agentSpec("b")},
		Workflow: mode.Workflow{
			Type:   mode.WorkflowMixed,
			Rounds: 1,
			Steps: []mode.Step{
				{Agents: []string{"a", "b"}, Phase: mode.PhaseDiverge},
				{Agent: "a", Phase: mode.PhaseIntegrate},
			},
		},
	}

	_, err := Build(m)
	assert.ErrorIs(t, err, mode.ErrInvalidConfig)
}

func TestBuild_ToolChecks(t *testing.T) {
	m, err := mode.NewBuilder("tools").
		Agent(agentSpec("a", "calculator", "mystery")).
		Sequential(1).
		Step(mode.Step{Agent: "a"}).
		Build()
	require.NoError(t, err)

	known := toolSet{"calculator": true}

	_, err = Build(m, func(o *Options) { o.Tools = known })
	assert.NoError(t, err)

	_, err = Build(m, func(o *Options) {
		o.Tools = known
		o.StrictTools = true
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, mode.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "mystery")
}
