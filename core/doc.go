// Package core provides the foundational domain types and interfaces shared by
// every Roundtable component. It defines:
//
//   - AgentMessage / ToolCall (immutable records of one agent turn)
//   - RunState and Increment (the mutable working state of one orchestration
//     run plus the associative merge used to fold concurrent node results)
//   - Event (typed streaming notifications emitted while a run executes)
//   - Session (the durable projection of a run) and the SessionStore contract
//   - Document and the DocumentStore contract consumed by the document reader tool
//   - Content / Part (role based conversation segments exchanged with models)
//
// The package keeps implementation concerns (persistence, orchestration,
// concrete tools) out of scope, exposing small interfaces so that backends can
// be swapped without touching the engine.
package core
