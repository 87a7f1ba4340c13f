package project

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is the serialized form of a Project. It is what the
// artifact store persists as the per-project state file.
type Snapshot struct {
	ProjectID   string            `json:"project_id"`
	ProjectName string            `json:"project_name"`
	Goal        string            `json:"goal"`
	TechStack   []string          `json:"tech_stack"`
	Status      Status            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Tasks       []string          `json:"tasks"`
	Files       []string          `json:"files"`
	Errors      []string          `json:"errors"`
	Logs        []LogEntry        `json:"logs"`
	Metadata    map[string]string `json:"metadata"`
}

// Snapshot captures the project's full serialized form.
func (p *Project) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		ProjectID:   p.id,
		ProjectName: p.name,
		Goal:        p.goal,
		TechStack:   append([]string(nil), p.techStack...),
		Status:      p.status,
		CreatedAt:   p.createdAt,
		UpdatedAt:   p.updatedAt,
		Tasks:       append([]string(nil), p.tasks...),
		Files:       append([]string(nil), p.files...),
		Errors:      append([]string(nil), p.errors...),
		Logs:        append([]LogEntry(nil), p.logs...),
		Metadata:    make(map[string]string, len(p.metadata)),
	}
	for k, v := range p.metadata {
		snap.Metadata[k] = v
	}
	return snap
}

// Encode serializes the snapshot to JSON.
func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot parses a serialized snapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode project snapshot: %w", err)
	}
	return snap, nil
}

// FromSnapshot rehydrates a Project. A status value outside the
// defined enum is rejected rather than silently defaulted.
func FromSnapshot(snap Snapshot) (*Project, error) {
	if _, ok := knownStatuses[snap.Status]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, snap.Status)
	}
	if snap.ProjectID == "" {
		return nil, fmt.Errorf("snapshot missing project id")
	}

	p := New(snap.ProjectID, snap.ProjectName, snap.Goal, snap.TechStack)
	p.status = snap.Status
	p.createdAt = snap.CreatedAt
	p.updatedAt = snap.UpdatedAt
	p.tasks = append([]string(nil), snap.Tasks...)
	p.errors = append([]string(nil), snap.Errors...)
	p.logs = append([]LogEntry(nil), snap.Logs...)
	for _, f := range snap.Files {
		if _, dup := p.fileSet[f]; dup {
			continue
		}
		p.fileSet[f] = struct{}{}
		p.files = append(p.files, f)
	}
	for k, v := range snap.Metadata {
		p.metadata[k] = v
	}
	return p, nil
}
