// Package roundtable runs multi-agent discussions: a set of configured agent
// personas takes turns over a topic in rounds, either one after another
// (dialectical modes) or independently followed by a single integrator
// (brainstorm modes), and the run ends with a plain-text discussion report.
//
// Most applications interact with this package by:
//  1. Creating a Roundtable via New() with a model and optional stores
//  2. Either calling Run directly, or managing persisted sessions through
//     CreateSession / RunSession / RunSessionStreaming
//
// Orchestration is delegated to engine.Coordinator; agent turns to
// agent.Executor. All defaults are in-memory and safe for local development.
package roundtable

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/roundtable/agent"
	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/engine"
	"github.com/hupe1980/roundtable/graph"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/memory"
	"github.com/hupe1980/roundtable/mode"
	"github.com/hupe1980/roundtable/model"
	"github.com/hupe1980/roundtable/session"
	"github.com/hupe1980/roundtable/tool"
)

// ErrSessionRunning is returned when a session is run while another run of
// the same session is still executing in this process.
var ErrSessionRunning = errors.New("session is already running")

// Options configures a Roundtable.
type Options struct {
	// Catalog of available modes; defaults to the built-in catalog.
	Catalog *mode.Catalog

	// Stores (default to in-memory implementations if not provided).
	SessionStore  core.SessionStore
	DocumentStore core.DocumentStore

	// Tools resolves agent tool ids; defaults to tool.NewDefaultRegistry over
	// DocumentStore and TavilyAPIKey.
	Tools        *tool.Registry
	TavilyAPIKey string
	// StrictTools rejects modes referencing unknown tool ids.
	StrictTools bool

	// MaxToolIterations bounds model calls of one tool-using turn.
	MaxToolIterations int
	// MaxParallelAgents bounds concurrent diverge agents; 0 means unbounded.
	MaxParallelAgents int

	Callbacks *engine.CallbackManager

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Roundtable is the high-level facade over the coordinator and the stores.
type Roundtable struct {
	opts  Options
	coord *engine.Coordinator

	mu      sync.Mutex
	running map[string]struct{}
}

// New creates a Roundtable driving the given model.
func New(llm model.Model, optFns ...func(o *Options)) *Roundtable {
	opts := Options{
		MaxToolIterations: 8,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Catalog == nil {
		opts.Catalog = mode.DefaultCatalog()
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}
	if opts.DocumentStore == nil {
		opts.DocumentStore = memory.NewInMemoryStore()
	}
	if opts.Tools == nil {
		opts.Tools = tool.NewDefaultRegistry(tool.DefaultsConfig{
			TavilyAPIKey: opts.TavilyAPIKey,
			Documents:    opts.DocumentStore,
			Logger:       opts.Logger,
		})
	}

	exec := agent.NewExecutor(llm, func(o *agent.Options) {
		o.Tools = opts.Tools
		o.MaxToolIterations = opts.MaxToolIterations
		o.Logger = opts.Logger
	})

	coord := engine.New(exec, func(o *engine.Options) {
		o.MaxParallelAgents = opts.MaxParallelAgents
		o.Callbacks = opts.Callbacks
		o.Logger = opts.Logger
		o.GraphOptions = []func(*graph.Options){func(g *graph.Options) {
			g.Tools = opts.Tools
			g.StrictTools = opts.StrictTools
			g.Logger = opts.Logger
		}}
	})

	return &Roundtable{opts: opts, coord: coord, running: map[string]struct{}{}}
}

// Catalog returns the mode catalog.
func (rt *Roundtable) Catalog() *mode.Catalog { return rt.opts.Catalog }

// Documents returns the document store read by the notebook reader tool.
func (rt *Roundtable) Documents() core.DocumentStore { return rt.opts.DocumentStore }

// ListTemplates describes every available mode.
func (rt *Roundtable) ListTemplates() []mode.Template { return rt.opts.Catalog.Templates() }

// RunInput describes a one-off run that is not persisted.
type RunInput struct {
	ModeID  string
	Topic   string
	Context map[string]any
	// Collection scopes the notebook reader tool.
	Collection string
	Stream     bool

	OnToken     func(agentID string, round int, chunk string)
	OnAgentDone func(msg core.AgentMessage)
	OnEvent     func(ev core.Event)
}

// Run executes one discussion and returns its final state. See
// engine.Coordinator.Run for the error contract.
func (rt *Roundtable) Run(ctx context.Context, in RunInput) (*core.RunState, error) {
	m, err := rt.opts.Catalog.Get(in.ModeID)
	if err != nil {
		return nil, err
	}

	return rt.coord.Run(ctx, engine.RunRequest{
		Mode:        m,
		Topic:       in.Topic,
		Context:     in.Context,
		Scope:       tool.Scope{Collection: in.Collection},
		Stream:      in.Stream,
		OnToken:     in.OnToken,
		OnAgentDone: in.OnAgentDone,
		OnEvent:     in.OnEvent,
	})
}

// CreateSession validates the mode and persists a new session in status
// created.
func (rt *Roundtable) CreateSession(ctx context.Context, modeID, topic string, vars map[string]any, collection string) (*core.Session, error) {
	m, err := rt.opts.Catalog.Get(modeID)
	if err != nil {
		return nil, err
	}
	if _, err := graph.Build(m, func(o *graph.Options) {
		o.Tools = rt.opts.Tools
		o.StrictTools = rt.opts.StrictTools
	}); err != nil {
		return nil, err
	}

	s := core.NewSession(modeID, topic, vars)
	s.Collection = collection
	s.AgentCount = len(m.Agents)

	if err := rt.opts.SessionStore.Save(ctx, s); err != nil {
		return nil, err
	}

	rt.opts.Logger.Info("roundtable.session.created", "session_id", s.ID, "mode", modeID)

	return s, nil
}

// SessionRunOptions configures one RunSession call.
type SessionRunOptions struct {
	// Stream enables token streaming (agent_chunk events).
	Stream bool
	// OnEvent receives every event of the run, serialized.
	OnEvent func(ev core.Event)
}

// RunSession runs a stored session to completion and persists the outcome.
// Completed sessions are returned unchanged. On a coordinator failure the
// partial messages are stored, the session is marked failed and returned
// together with the error.
func (rt *Roundtable) RunSession(ctx context.Context, id string, optFns ...func(o *SessionRunOptions)) (*core.Session, error) {
	var opts SessionRunOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	return rt.runSession(ctx, id, opts.Stream, opts.OnEvent)
}

// RunSessionStreaming is RunSession with token streaming; every event of the
// run is passed to onEvent, serialized.
func (rt *Roundtable) RunSessionStreaming(ctx context.Context, id string, onEvent func(ev core.Event)) (*core.Session, error) {
	return rt.RunSession(ctx, id, func(o *SessionRunOptions) {
		o.Stream = true
		o.OnEvent = onEvent
	})
}

func (rt *Roundtable) runSession(ctx context.Context, id string, stream bool, onEvent func(ev core.Event)) (*core.Session, error) {
	s, err := rt.opts.SessionStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Completed sessions are returned unchanged.
	if s.GetStatus() == core.SessionCompleted {
		if onEvent != nil {
			onEvent(core.NewRunCompleteEvent(s.ID, s.FinalReport))
		}
		return s, nil
	}

	if !rt.acquire(id) {
		return nil, fmt.Errorf("%w: %s", ErrSessionRunning, id)
	}
	defer rt.release(id)

	m, err := rt.opts.Catalog.Get(s.Mode)
	if err != nil {
		return rt.failSession(ctx, s, err)
	}

	s = resetSession(s)
	s.SetStatus(core.SessionInProgress)
	if err := rt.opts.SessionStore.Save(ctx, s); err != nil {
		return nil, err
	}

	state, runErr := rt.coord.Run(ctx, engine.RunRequest{
		RunID:   s.ID,
		Mode:    m,
		Topic:   s.Topic,
		Context: s.Context,
		Scope:   tool.Scope{Collection: s.Collection},
		Stream:  stream,
		OnEvent: onEvent,
	})

	if state != nil {
		for _, msg := range state.Messages {
			s.AddMessage(msg)
		}
	}

	if runErr != nil {
		return rt.failSession(ctx, s, runErr)
	}

	s.SetFinalReport(state.FinalReport)
	s.SetStatus(core.SessionCompleted)

	// The run may outlive a cancelled caller; its result is still stored.
	if err := rt.opts.SessionStore.Save(context.WithoutCancel(ctx), s); err != nil {
		return nil, err
	}

	rt.opts.Logger.Info("roundtable.session.completed", "session_id", s.ID, "messages", len(state.Messages))

	return s, nil
}

func (rt *Roundtable) failSession(ctx context.Context, s *core.Session, cause error) (*core.Session, error) {
	s.SetStatus(core.SessionFailed)

	if err := rt.opts.SessionStore.Save(context.WithoutCancel(ctx), s); err != nil {
		return nil, errors.Join(cause, err)
	}

	rt.opts.Logger.Error("roundtable.session.failed", "session_id", s.ID, "error", cause.Error())

	return s, cause
}

// resetSession drops the output of an earlier failed attempt.
func resetSession(s *core.Session) *core.Session {
	fresh := core.NewSession(s.Mode, s.Topic, s.Context)
	fresh.ID = s.ID
	fresh.Collection = s.Collection
	fresh.AgentCount = s.AgentCount
	fresh.Created = s.Created

	return fresh
}

// GetSession loads one session.
func (rt *Roundtable) GetSession(ctx context.Context, id string) (*core.Session, error) {
	return rt.opts.SessionStore.Get(ctx, id)
}

// ListSessions lists sessions newest first, optionally for one collection.
func (rt *Roundtable) ListSessions(ctx context.Context, collection string, limit int) ([]*core.Session, error) {
	return rt.opts.SessionStore.List(ctx, collection, limit)
}

// DeleteSession removes a session.
func (rt *Roundtable) DeleteSession(ctx context.Context, id string) error {
	return rt.opts.SessionStore.Delete(ctx, id)
}

func (rt *Roundtable) acquire(id string) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, busy := rt.running[id]; busy {
		return false
	}
	rt.running[id] = struct{}{}

	return true
}

func (rt *Roundtable) release(id string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	delete(rt.running, id)
}
