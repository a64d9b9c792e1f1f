// Package engine implements the Round Coordinator: the state machine that
// drives an orchestration plan through its rounds and merges the increments
// produced by agent nodes into one run state.
//
// # State Machine
//
//	PENDING -> ROUND_1_RUNNING -> ... -> ROUND_N_RUNNING -> FINALIZING -> DONE
//	                   \__________________________|______________/
//	                                              v
//	                                           FAILED
//
// Sequential plans run the loop group strictly in step order each round.
// Mixed plans fan the diverge agents out concurrently and advance only after
// all of them completed (barrier). After the last round the final or
// integrate agent runs exactly once and the report is assembled.
//
// # Merge Rule
//
// Nodes never mutate the run state. Each returns a core.Increment (one
// message, and one available_messages entry unless the turn degraded) which
// the coordinator merges after the node completed. Diverge increments are
// merged in completion order; a diverge agent reads only the previous round's
// outputs of its peers, never a same-round write.
//
// # Error Handling
//
// Degraded agent turns are ordinary messages with Error set and the run
// continues. Anything escaping node execution (a failing callback, a panic, a
// cancelled context) moves the run to FAILED; the partial state is returned
// together with an error wrapping ErrRunFailed.
//
// # Usage
//
//	exec := agent.NewExecutor(llm, func(o *agent.Options) { o.Tools = registry })
//	coord := engine.New(exec, func(o *engine.Options) { o.Logger = logger })
//
//	state, err := coord.Run(ctx, engine.RunRequest{
//	    Mode:  m,
//	    Topic: "Should we adopt a four-day week?",
//	    OnEvent: func(ev core.Event) { relay.Publish(ev) },
//	})
package engine
