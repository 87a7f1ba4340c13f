// Package orchestrator drives the generation pipeline.
//
// One Orchestrator coordinates the planner, developer, enforcer,
// tester and fixer agents through a project's status machine:
// PENDING -> PLANNING -> CODING -> TESTING -> COMPLETED, with FAILED
// reachable from any non-terminal stage. Each agent call runs under
// its own timeout. A planning timeout is fatal; most later failures
// degrade to logged warnings so a single bad file never sinks the
// whole project.
//
// The orchestrator also owns the project read path (in-memory
// registry, then persisted snapshot, then reconstruction from
// artifacts on disk), the sabotage challenge mode, and architecture
// analysis.
package orchestrator
