package project

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound indicates no entity is registered for the id.
	ErrNotFound = errors.New("project not found")

	// ErrNoActiveChallenge indicates no challenge is recorded for the
	// project.
	ErrNoActiveChallenge = errors.New("no active challenge for project")
)

// Challenge is the transient record of an active dojo challenge. It
// lives only in process memory; a crash loses active challenges.
type Challenge struct {
	ProjectID       string
	FilePath        string
	OriginalContent string
	Hint            string
	Intel           string
	StartedAt       time.Time
}

// Registry owns the in-memory project entities and active challenges.
// One registry is created at process start and every access goes
// through it; there is no ambient package state.
type Registry struct {
	mu         sync.RWMutex
	projects   map[string]*Project
	challenges map[string]*Challenge
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		projects:   make(map[string]*Project),
		challenges: make(map[string]*Challenge),
	}
}

// Put registers or replaces the entity for its id.
func (r *Registry) Put(p *Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.ID()] = p
}

// Get returns the registered entity, or ErrNotFound.
func (r *Registry) Get(id string) (*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// SetChallenge records the active challenge for its project id,
// overwriting any prior challenge for that id.
func (r *Registry) SetChallenge(c *Challenge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.challenges[c.ProjectID] = c
}

// Challenge returns the active challenge, or ErrNoActiveChallenge.
func (r *Registry) Challenge(projectID string) (*Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.challenges[projectID]
	if !ok {
		return nil, ErrNoActiveChallenge
	}
	return c, nil
}

// ClearChallenge removes the active challenge for projectID.
func (r *Registry) ClearChallenge(projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.challenges, projectID)
}
