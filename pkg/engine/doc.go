// Package engine drives the deployment lifecycle for isolated sessions.
//
// # Overview
//
// Each session deploys one prepared workspace through a fixed sequence:
//
//  1. Init - initialize the provisioning workspace
//  2. Plan - dry-run the provisioning changes
//  3. Apply - create resources (bounded by the session timeout)
//  4. Output - read provisioning outputs as JSON and flatten them
//  5. Publish - mirror the artifact directory into the content store
//  6. Invalidate - best-effort edge cache purge (never fatal)
//
// The sequence is strictly linear and one-shot: any fatal error aborts
// the remaining steps, and no step is retried. The engine holds no
// cross-call state; idempotence of init/plan/apply is governed by the
// provisioning tool's own state file in the workspace.
//
// # Core Domain Types
//
//   - Record: the accumulating per-session result (outputs, transcript,
//     errors, duration)
//   - Phase: one lifecycle step, carried on every fatal error so callers
//     never infer the failing step from message text
//   - DeployRequest / DestroyRequest: session inputs supplied by the
//     caller, which owns workspace and artifact preparation
//
// # Concurrency
//
// One goroutine drives one session; the Record has a single writer and
// needs no locking. Engines support concurrent sessions as long as every
// session has its own workspace directory: the provisioning tool's
// on-disk state is not safe for concurrent mutation.
package engine
