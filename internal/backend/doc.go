// Package backend defines the capability contract shared by every compute
// backend the dispatcher can route to. It is structured into small files by
// concern:
//
//   - backend.go: the Backend interface and optional ModelManager/Configurable.
//   - capability.go: Capability and Identity values plus the Require guard.
//   - types.go: request/response and status types.
//   - errors.go: error taxonomy with ErrXxx constructors and IsXxx predicates.
//   - transport.go: TransportError and transport failure classification.
//
// Concrete backends live in sibling packages (subproc, remote) and must call
// Require at the top of every capability entry point so that rejection of an
// undeclared capability behaves identically everywhere.
package backend
