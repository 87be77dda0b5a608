// Package operations runs the pipeline as an ordered set of steps.
//
// Core components:
//
// Step: a single unit of work with an ID, a display name and the IDs of the
// steps it depends on. BaseStep supplies the common parts.
//
// Registry: holds steps in registration order and returns them in dependency
// order (Kahn's algorithm, ties broken by registration order). Cycles and
// dependencies on unregistered steps are rejected.
//
// Runner: executes the ordered steps one at a time. The context is checked
// between steps, every step runs inside its own trace span, and the
// dependents of a failed step are skipped. There are no retries.
//
// RunState: the run id, the per-step states and values shared between steps.
//
// Pipeline: builds the extract, dimension and analysis steps over the
// canonical store.
package operations
