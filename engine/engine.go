package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/roundtable/agent"
	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/graph"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/mode"
	"github.com/hupe1980/roundtable/report"
	"github.com/hupe1980/roundtable/tool"
)

// ErrRunFailed is wrapped by every coordinator-level failure.
var ErrRunFailed = errors.New("run failed")

// TurnExecutor runs one agent turn. *agent.Executor implements it.
type TurnExecutor interface {
	Execute(ctx context.Context, turn agent.Turn) agent.Result
}

// Options configures a Coordinator.
type Options struct {
	// MaxParallelAgents bounds concurrently running diverge agents; 0 means
	// all diverge agents of a round run at once.
	MaxParallelAgents int

	// Callbacks are executed at lifecycle points. May be nil.
	Callbacks *CallbackManager

	// GraphOptions are passed to graph.Build when a request carries no plan.
	GraphOptions []func(o *graph.Options)

	Logger logging.Logger
}

// Coordinator drives plans to completion. It keeps no per-run state and may be
// shared by concurrent runs.
type Coordinator struct {
	exec TurnExecutor
	opts Options
}

// New creates a coordinator over the given turn executor.
func New(exec TurnExecutor, optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Coordinator{exec: exec, opts: opts}
}

// RunRequest describes one orchestration run.
//
// OnToken, OnAgentDone and OnEvent are never called concurrently with
// themselves or each other, even while diverge agents run in parallel.
type RunRequest struct {
	// RunID identifies the run in events; generated when empty.
	RunID string
	Mode  mode.Mode
	// Plan is built from Mode when nil.
	Plan    *graph.Plan
	Topic   string
	Context map[string]any
	// Scope is handed to tool factories, e.g. the document collection.
	Scope  tool.Scope
	Stream bool

	OnToken     func(agentID string, round int, chunk string)
	OnAgentDone func(msg core.AgentMessage)
	OnEvent     func(ev core.Event)
}

// Run executes the plan of req.Mode to completion and returns the final run
// state including the report.
//
// Configuration errors are returned with a nil state and wrap
// mode.ErrInvalidConfig. Coordinator failures return the partial state in
// phase FAILED together with an error wrapping ErrRunFailed.
func (c *Coordinator) Run(ctx context.Context, req RunRequest) (*core.RunState, error) {
	plan := req.Plan
	if plan == nil {
		var err error
		if plan, err = graph.Build(req.Mode, c.opts.GraphOptions...); err != nil {
			return nil, err
		}
	}

	if req.RunID == "" {
		req.RunID = core.NewID()
	}

	r := &run{
		coord: c,
		req:   req,
		plan:  plan,
		state: core.NewRunState(req.RunID, req.Mode.ID, req.Topic, req.Context, plan.Rounds),
	}

	return r.execute(ctx)
}

type run struct {
	coord *Coordinator
	req   RunRequest
	plan  *graph.Plan
	state *core.RunState

	emitMu sync.Mutex
}

func (r *run) logger() logging.Logger { return r.coord.opts.Logger }

func (r *run) execute(ctx context.Context) (*core.RunState, error) {
	start := time.Now()

	r.logger().Info("engine.run.start",
		"run_id", r.state.RunID,
		"mode", r.plan.ModeID,
		"kind", string(r.plan.Kind),
		"rounds", r.plan.Rounds,
	)

	for r.state.CurrentRound <= r.plan.Rounds {
		r.setPhase(core.PhaseRoundRunning)
		roundStart := time.Now()

		var (
			inc core.Increment
			err error
		)
		if r.plan.Kind == mode.WorkflowMixed {
			inc, err = r.runDiverge(ctx)
		} else {
			err = r.runSequential(ctx)
		}
		r.state.Apply(inc)
		if err != nil {
			return r.fail(ctx, err)
		}

		r.logRound(time.Since(roundStart))

		if err := r.coord.opts.Callbacks.ExecuteCallbacks(ctx, CallbackRoundComplete, r.callbackCtx("")); err != nil {
			return r.fail(ctx, err)
		}

		r.state.CurrentRound++
	}

	if r.plan.Final != nil {
		r.setPhase(core.PhaseFinalizing)

		visible := r.state.Visible(r.plan.Final.Context)
		inc, err := r.runNode(ctx, *r.plan.Final, visible)
		r.state.Apply(inc)
		if err != nil {
			return r.fail(ctx, err)
		}
	}

	r.state.FinalReport = report.Assemble(r.req.Mode, r.state)
	r.setPhase(core.PhaseDone)
	r.emit(core.NewRunCompleteEvent(r.state.RunID, r.state.FinalReport))

	r.logger().Info("engine.run.complete",
		"run_id", r.state.RunID,
		"messages", len(r.state.Messages),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return r.state.Snapshot(), nil
}

// runSequential executes the loop group in step order. Each node sees the
// latest outputs of its context agents, including writes of this round.
func (r *run) runSequential(ctx context.Context) error {
	for _, node := range r.plan.Round {
		inc, err := r.runNode(ctx, node, r.state.Visible(node.Context))
		r.state.Apply(inc)
		if err != nil {
			return err
		}
	}

	return nil
}

// runDiverge fans out the diverge agents and waits for all of them. Visible
// context is the previous round's output of every peer, taken before any
// branch starts, and empty in round 1. A peer that degraded in the previous
// round is left out rather than shown with an older output.
//
// Siblings of a failing branch are not canceled so the partial log only holds
// genuine agent results.
func (r *run) runDiverge(ctx context.Context) (core.Increment, error) {
	round := r.state.CurrentRound
	prior := r.state.RoundOutputs(round - 1)

	var g errgroup.Group
	if n := r.coord.opts.MaxParallelAgents; n > 0 {
		g.SetLimit(n)
	}

	var (
		mu     sync.Mutex
		merged core.Increment
	)

	for _, node := range r.plan.Round {
		var visible []core.PreviousMessage
		for _, peer := range node.Peers {
			if text, ok := prior[peer]; ok {
				visible = append(visible, core.PreviousMessage{AgentID: peer, Content: text})
			}
		}

		g.Go(func() error {
			inc, err := r.runNode(ctx, node, visible)

			mu.Lock()
			merged = core.Merge(merged, inc)
			mu.Unlock()

			return err
		})
	}

	err := g.Wait()

	return merged, err
}

// runNode executes one agent turn and returns its increment. The returned
// error is a coordinator-level failure; degraded turns are not errors.
func (r *run) runNode(ctx context.Context, node graph.Node, visible []core.PreviousMessage) (inc core.Increment, err error) {
	round := r.state.CurrentRound
	if node.Stage == graph.StageFinal || node.Stage == graph.StageIntegrate {
		// The final agent speaks after the last round: max_rounds + 1.
		round = r.plan.Rounds + 1
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("agent %s panicked: %v", node.AgentID, p)
		}
	}()

	if err := ctx.Err(); err != nil {
		return core.Increment{}, err
	}

	spec, ok := r.req.Mode.Agent(node.AgentID)
	if !ok {
		return core.Increment{}, fmt.Errorf("agent %q not found in mode %q", node.AgentID, r.req.Mode.ID)
	}

	cc := r.callbackCtx(node.AgentID)
	cc.Round = round
	if err := r.coord.opts.Callbacks.ExecuteCallbacks(ctx, CallbackBeforeAgent, cc); err != nil {
		return core.Increment{}, err
	}

	r.emit(core.NewAgentStartEvent(r.state.RunID, node.AgentID, round))

	turn := agent.Turn{
		Agent:    spec,
		Topic:    r.state.Topic,
		Context:  r.state.Context,
		Previous: visible,
		Scope:    r.req.Scope,
		Stream:   r.req.Stream,
	}
	if r.req.Stream {
		turn.OnToken = func(chunk string) { r.emitChunk(node.AgentID, round, chunk) }
	}

	res := r.coord.exec.Execute(ctx, turn)

	msg := res.Message(node.AgentID, round)
	msg.AgentName = r.req.Mode.AgentName(node.AgentID)

	inc = core.Increment{Messages: []core.AgentMessage{msg}}
	if !res.Degraded() {
		inc.AvailableMessages = map[string]string{node.AgentID: msg.Content}
	}

	r.emitDone(msg)

	cc.Message = &msg
	if err := r.coord.opts.Callbacks.ExecuteCallbacks(ctx, CallbackAfterAgent, cc); err != nil {
		return inc, err
	}

	return inc, nil
}

func (r *run) fail(ctx context.Context, cause error) (*core.RunState, error) {
	err := fmt.Errorf("%w: %s: %w", ErrRunFailed, r.state.Status(), cause)
	r.setPhase(core.PhaseFailed)

	r.logger().Error("engine.run.failed",
		"run_id", r.state.RunID,
		"messages", len(r.state.Messages),
		"error", err.Error(),
	)

	cc := r.callbackCtx("")
	cc.Err = err
	_ = r.coord.opts.Callbacks.ExecuteCallbacks(context.WithoutCancel(ctx), CallbackOnError, cc)

	r.emit(core.NewErrorEvent(r.state.RunID, err))

	return r.state.Snapshot(), err
}

func (r *run) setPhase(p core.Phase) {
	r.state.Phase = p
	r.logger().Debug("engine.phase", "run_id", r.state.RunID, "status", r.state.Status())
}

func (r *run) callbackCtx(agentID string) *CallbackContext {
	return &CallbackContext{
		RunID:   r.state.RunID,
		ModeID:  r.plan.ModeID,
		AgentID: agentID,
		Round:   r.state.CurrentRound,
	}
}

func (r *run) emit(ev core.Event) {
	if r.req.OnEvent == nil {
		return
	}

	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	r.req.OnEvent(ev)
}

func (r *run) emitChunk(agentID string, round int, chunk string) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	if r.req.OnToken != nil {
		r.req.OnToken(agentID, round, chunk)
	}
	if r.req.OnEvent != nil {
		r.req.OnEvent(core.NewAgentChunkEvent(r.state.RunID, agentID, round, chunk))
	}
}

func (r *run) emitDone(msg core.AgentMessage) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	if r.req.OnAgentDone != nil {
		r.req.OnAgentDone(msg.Clone())
	}
	if r.req.OnEvent != nil {
		r.req.OnEvent(core.NewAgentCompleteEvent(r.state.RunID, msg))
	}
}

// roundLogger is implemented by *logging.RoundtableLogger.
type roundLogger interface {
	LogRoundExecution(mode string, round, agents int, dur time.Duration, degraded int)
}

func (r *run) logRound(dur time.Duration) {
	degraded := 0
	for _, m := range r.state.Messages {
		if m.Round == r.state.CurrentRound && m.Error {
			degraded++
		}
	}

	if rl, ok := r.logger().(roundLogger); ok {
		rl.LogRoundExecution(r.plan.ModeID, r.state.CurrentRound, len(r.plan.Round), dur, degraded)
		return
	}

	r.logger().Info("engine.round.complete",
		"run_id", r.state.RunID,
		"round", r.state.CurrentRound,
		"agents", len(r.plan.Round),
		"degraded", degraded,
		"duration_ms", dur.Milliseconds(),
	)
}
