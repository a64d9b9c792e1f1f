// Package memory contains the in-memory DocumentStore: the sources and notes
// of a collection that the document reader tool digests. The store interface
// and Document type reside in the core package. Depend on core.DocumentStore in
// your code and select an implementation (this one, or storage/sqlite) at
// wiring time.
package memory
