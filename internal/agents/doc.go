// Package agents contains the generation collaborators the pipeline
// orchestrator invokes: planner, developer, enforcer, tester, fixer,
// saboteur and analyzer.
//
// Each agent is a thin prompt-and-parse wrapper around the llm.Client.
// Agents hold no project state; the orchestrator owns sequencing,
// timeouts and persistence.
package agents
