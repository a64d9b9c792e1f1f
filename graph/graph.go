// Package graph builds the orchestration plan of a run from a mode topology.
//
// Two shapes are supported. A sequential plan repeats a loop group of agents in
// fixed step order for the configured number of rounds and then runs a single
// final agent. A mixed plan fans out the diverge agents concurrently each round
// and then runs a single integrate agent. Plans are immutable values and may be
// shared by concurrent runs.
package graph

import (
	"fmt"
	"slices"

	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/mode"
)

// Stage is the position of a node in the plan.
type Stage string

const (
	// StageLoop marks a sequential loop-group node.
	StageLoop Stage = "loop"
	// StageDiverge marks a concurrent diverge node.
	StageDiverge Stage = "diverge"
	// StageFinal marks the sequential final node.
	StageFinal Stage = "final"
	// StageIntegrate marks the mixed integrate node.
	StageIntegrate Stage = "integrate"
)

// Node is one agent execution slot.
type Node struct {
	AgentID string
	Stage   Stage
	// Context lists agents whose latest output is visible to this node.
	Context []string
	// Peers lists the other diverge agents of a mixed plan. Only their
	// previous-round outputs are visible, starting with round 2.
	Peers []string
}

// Plan is the executable topology of a mode.
type Plan struct {
	ModeID string
	Kind   mode.WorkflowKind
	Rounds int
	// Round holds the nodes executed every round: the loop group in order
	// (sequential) or the diverge set (mixed).
	Round []Node
	// Final is run exactly once after the last round. Nil for a sequential
	// mode with a single step.
	Final *Node
}

// AgentIDs returns every agent id of the plan in execution order.
func (p *Plan) AgentIDs() []string {
	ids := make([]string, 0, len(p.Round)+1)
	for _, n := range p.Round {
		ids = append(ids, n.AgentID)
	}
	if p.Final != nil {
		ids = append(ids, p.Final.AgentID)
	}
	return ids
}

// ExpectedMessages is the number of messages a run of the plan produces
// without coordinator failures.
func (p *Plan) ExpectedMessages() int {
	n := len(p.Round) * p.Rounds
	if p.Final != nil {
		n++
	}
	return n
}

// ToolChecker reports whether a tool id can be resolved. *tool.Registry
// implements it.
type ToolChecker interface {
	Has(id string) bool
}

// Options configures Build.
type Options struct {
	// Tools, when set, is used to check the tool ids of every agent. Unknown
	// ids are logged.
	Tools ToolChecker
	// StrictTools turns unknown tool ids into configuration errors.
	StrictTools bool
	Logger      logging.Logger
}

// Build validates m and constructs its plan. Every error wraps
// mode.ErrInvalidConfig.
func Build(m mode.Mode, optFns ...func(o *Options)) (*Plan, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := mode.Validate(m); err != nil {
		return nil, err
	}

	if err := checkTools(m, opts); err != nil {
		return nil, err
	}

	var (
		plan *Plan
		err  error
	)

	switch m.Workflow.Type {
	case mode.WorkflowSequential:
		plan = buildSequential(m)
	case mode.WorkflowMixed:
		plan, err = buildMixed(m)
	default:
		err = fmt.Errorf("%w: mode %q: unknown workflow type %q", mode.ErrInvalidConfig, m.ID, m.Workflow.Type)
	}
	if err != nil {
		return nil, err
	}

	opts.Logger.Debug("graph.built",
		"mode", m.ID,
		"kind", string(plan.Kind),
		"rounds", plan.Rounds,
		"round_nodes", len(plan.Round),
		"final", plan.Final != nil,
	)

	return plan, nil
}

func buildSequential(m mode.Mode) *Plan {
	steps := m.Workflow.Steps
	loop, final := steps, []mode.Step(nil)
	if len(steps) > 1 {
		loop, final = steps[:len(steps)-1], steps[len(steps)-1:]
	}

	plan := &Plan{ModeID: m.ID, Kind: mode.WorkflowSequential, Rounds: m.Workflow.Rounds}
	for _, s := range loop {
		plan.Round = append(plan.Round, Node{
			AgentID: s.AgentIDs()[0],
			Stage:   StageLoop,
			Context: slices.Clone(s.Context),
		})
	}

	if len(final) == 1 {
		plan.Final = &Node{
			AgentID: final[0].AgentIDs()[0],
			Stage:   StageFinal,
			Context: slices.Clone(final[0].Context),
		}
	}

	return plan
}

func buildMixed(m mode.Mode) (*Plan, error) {
	var diverge, integrate *mode.Step
	for i := range m.Workflow.Steps {
		s := &m.Workflow.Steps[i]
		switch s.Phase {
		case mode.PhaseDiverge:
			diverge = s
		case mode.PhaseIntegrate:
			integrate = s
		}
	}

	if diverge == nil || integrate == nil {
		return nil, fmt.Errorf("%w: mode %q: mixed workflow requires both diverge and integrate phases", mode.ErrInvalidConfig, m.ID)
	}

	ids := diverge.AgentIDs()
	plan := &Plan{ModeID: m.ID, Kind: mode.WorkflowMixed, Rounds: m.Workflow.Rounds}

	for _, id := range ids {
		peers := make([]string, 0, len(ids)-1)
		for _, other := range ids {
			if other != id {
				peers = append(peers, other)
			}
		}
		plan.Round = append(plan.Round, Node{AgentID: id, Stage: StageDiverge, Peers: peers})
	}

	integrator := integrate.AgentIDs()[0]
	if slices.Contains(ids, integrator) {
		return nil, fmt.Errorf("%w: mode %q: agent %q is both diverge and integrate", mode.ErrInvalidConfig, m.ID, integrator)
	}

	plan.Final = &Node{
		AgentID: integrator,
		Stage:   StageIntegrate,
		Context: slices.Clone(integrate.Context),
	}

	return plan, nil
}

func checkTools(m mode.Mode, opts Options) error {
	if opts.Tools == nil {
		return nil
	}

	for _, a := range m.Agents {
		for _, id := range a.Tools {
			if opts.Tools.Has(id) {
				continue
			}
			if opts.StrictTools {
				return &mode.ConfigError{Mode: m.ID, Field: "agents." + a.ID + ".tools", Message: fmt.Sprintf("unknown tool %q", id)}
			}
			opts.Logger.Warn("graph.unknown_tool", "mode", m.ID, "agent", a.ID, "tool_id", id)
		}
	}

	return nil
}
