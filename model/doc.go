// Package model defines the provider-agnostic abstractions and concrete
// helpers for talking to language models from agent turns.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, FunctionCall)
//   - Carry per-request sampling overrides (temperature, max tokens)
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (model/openai, model/anthropic) implement the Model interface so
// the agent executor and the tool loop remain decoupled from vendor SDKs.
package model
