// Package engine provides the backend-agnostic reconciliation core of supac.
//
// # Overview
//
// supac reconciles a declarative package list against several
// package managers by invoking their command-line tools. For every backend
// present in the declaration the engine runs the same pipeline:
//
//  1. Parse - convert the backend's record into typed specs (backend packages)
//  2. Probe - query the installed state through the backend's CLI
//  3. Reconcile - diff desired against installed state (Reconcile)
//  4. Execute - run the planned commands (Executor)
//  5. Hooks - run post-install hooks of items that were installed (HookScheduler)
//
// Backends are processed one at a time, in registry order. A failing backend
// does not prevent the following ones from running; every failure is
// collected into a single Report.
//
// # Core Types
//
//   - Backend: one package manager (arch, flatpak, cargo, rustup)
//   - Desired / Installed / Result: inputs and output of Reconcile
//   - Operation: a single planned command plus the hooks it unlocks
//   - Plan: the ordered operations of one backend
//   - HookRef: user-authored post-install code
//   - Runner: external command execution
//
// # Errors
//
// All failures are EngineError values classified by ErrorKind:
// config, probe, operation_failed, hook_failed, malformed_log and
// policy_denied. Use the IsX helpers or errors.As to inspect them.
//
// # Dry Run
//
// With ExecuteOptions.DryRun the executor prints every command line and the
// source of every hook that would run, without invoking anything.
package engine
