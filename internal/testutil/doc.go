// Package testutil contains helpers used across tests to reduce boilerplate
// when constructing sessions and recording streamed events. They are not
// intended for production usage.
package testutil
