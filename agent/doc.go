// Package agent contains the Agent Turn Executor: the component that runs one
// persona's reasoning step inside a discussion round.
//
// A turn is executed in three stages:
//
//  1. The user prompt is rendered from the agent's template, substituting the
//     topic, every context key and the visible outputs of other agents
//     (canonical slots such as {critic_opinion}, a combined
//     {previous_opinions} block and one {<agent_id>_message} per agent).
//  2. Agents without tools call the model once, optionally streaming tokens
//     to a callback.
//  3. Agents with tools run the bounded reasoning loop from package flow and
//     record every tool invocation in order.
//
// Failures at any stage are returned in Result.Err and never as a panic or a
// second return value: the round coordinator turns them into degraded
// messages so a single agent cannot abort a run.
package agent
