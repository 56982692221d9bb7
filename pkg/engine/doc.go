// Package engine implements the execution core of the NoxSuite installer.
//
// The engine is deliberately sequential: installation steps depend on
// filesystem and tool state produced by earlier steps, so stages, steps,
// and dependency resolution execute one at a time, strictly ordered.
//
// The building blocks are:
//
//   - AtomicStep: the smallest unit of work, constructed with an execute
//     function, an optional rollback, and an optional validator. A step's
//     effect is either fully visible or fully reverted.
//
//   - StepSequencer: runs steps in order; on the first critical failure it
//     unwinds every previously succeeded step in strict reverse order,
//     exactly once each, before reporting failure. Steps marked
//     non-critical are skipped on failure instead of aborting.
//
//   - InstallError / FailureKind: the classified failure taxonomy shared by
//     all installer components. Components classify their own failures;
//     callers observe outcome values, never panics.
//
// Status transitions are forward-only:
//
//	pending -> running -> {completed | failed | skipped}
//
// with retrying as a transient substate of running, bounded by the step's
// retry limit.
package engine
