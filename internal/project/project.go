// Package project holds the persistent project-state entity and the
// in-memory registry that owns entities and active challenges.
//
// The entity is a pure data container: no I/O, no external calls.
// Serialization round-trips losslessly through Snapshot/FromSnapshot.
package project

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Status is the project lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPlanning  Status = "planning"
	StatusCoding    Status = "coding"
	StatusTesting   Status = "testing"
	StatusAnalyzing Status = "analyzing"
	StatusDojo      Status = "dojo_mode"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// forwardTransitions is the allowed forward edge per status. Failed is
// reachable from any non-terminal status and handled separately.
// Analyzing and dojo_mode never flow through UpdateStatus: analysis is
// read-only and challenges are keyed separately from the pipeline.
var forwardTransitions = map[Status]Status{
	StatusPending:  StatusPlanning,
	StatusPlanning: StatusCoding,
	StatusCoding:   StatusTesting,
	StatusTesting:  StatusCompleted,
}

var knownStatuses = map[Status]struct{}{
	StatusPending: {}, StatusPlanning: {}, StatusCoding: {}, StatusTesting: {},
	StatusAnalyzing: {}, StatusDojo: {}, StatusCompleted: {}, StatusFailed: {},
}

var (
	// ErrInvalidTransition indicates a status change that skips the
	// forward order or leaves a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnknownStatus indicates a snapshot carrying a status value
	// outside the defined enum.
	ErrUnknownStatus = errors.New("unknown project status")

	// ErrDuplicateFile indicates a path already present in the
	// project's file list.
	ErrDuplicateFile = errors.New("file already recorded")
)

// LogEntry is one structured log line attached to a project.
type LogEntry struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Project is the in-memory record of one generation run.
type Project struct {
	mu sync.Mutex

	id        string
	name      string
	goal      string
	techStack []string
	status    Status
	createdAt time.Time
	updatedAt time.Time
	tasks     []string
	files     []string
	fileSet   map[string]struct{}
	errors    []string
	logs      []LogEntry
	metadata  map[string]string
}

// New creates a project in StatusPending. An empty tech stack defaults
// to python, matching the planner's default.
func New(id, name, goal string, techStack []string) *Project {
	if len(techStack) == 0 {
		techStack = []string{"python"}
	}
	now := time.Now()
	return &Project{
		id:        id,
		name:      name,
		goal:      goal,
		techStack: techStack,
		status:    StatusPending,
		createdAt: now,
		updatedAt: now,
		fileSet:   make(map[string]struct{}),
		metadata:  make(map[string]string),
	}
}

// ID returns the project id.
func (p *Project) ID() string { return p.id }

// Status returns the current status.
func (p *Project) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Files returns a copy of the recorded file list in insertion order.
func (p *Project) Files() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.files))
	copy(out, p.files)
	return out
}

// TechStack returns a copy of the requested technology stack.
func (p *Project) TechStack() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.techStack))
	copy(out, p.techStack)
	return out
}

// Name returns the display name.
func (p *Project) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// Goal returns the free-text goal.
func (p *Project) Goal() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.goal
}

// SetMetadata records an open-ended metadata entry.
func (p *Project) SetMetadata(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metadata[key] = value
	p.updatedAt = time.Now()
}

// Metadata returns the metadata value for key.
func (p *Project) Metadata(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metadata[key]
}

// UpdateStatus advances the status. Only the forward order
// pending→planning→coding→testing→completed is allowed, except
// StatusFailed which is reachable from any non-terminal status.
func (p *Project) UpdateStatus(next Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if next == StatusFailed {
		if p.status == StatusCompleted || p.status == StatusFailed {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.status, next)
		}
		p.status = next
		p.updatedAt = time.Now()
		return nil
	}

	if forwardTransitions[p.status] != next {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.status, next)
	}
	p.status = next
	p.updatedAt = time.Now()
	return nil
}

// AddTask appends a plan task description.
func (p *Project) AddTask(task string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
	p.updatedAt = time.Now()
}

// AddFile appends a produced file path. Insertion order is creation
// order; duplicates are rejected.
func (p *Project) AddFile(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.fileSet[path]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateFile, path)
	}
	p.fileSet[path] = struct{}{}
	p.files = append(p.files, path)
	p.updatedAt = time.Now()
	return nil
}

// AddError appends an error string.
func (p *Project) AddError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, msg)
	p.updatedAt = time.Now()
}

// AddLog appends a structured log entry.
func (p *Project) AddLog(logType, message string, payload map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logs = append(p.logs, LogEntry{
		Type:      logType,
		Message:   message,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	p.updatedAt = time.Now()
}

// Errors returns a copy of the error list.
func (p *Project) Errors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.errors))
	copy(out, p.errors)
	return out
}

// Logs returns a copy of the log entries.
func (p *Project) Logs() []LogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]LogEntry, len(p.logs))
	copy(out, p.logs)
	return out
}
