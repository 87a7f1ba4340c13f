// Package store provides the sandboxed artifact store.
//
// All generated project files and state snapshots live under one
// workspace root, one subdirectory per project id. Every read and
// write resolves its path through a traversal guard first, and writes
// go through a free-space check and a temp-then-rename so a reader
// never observes a partial file.
package store

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/config"
)

// StateFileName is the hidden per-project snapshot file. It is
// excluded from file listings.
const StateFileName = ".craftd-state.json"

// Store is the artifact store interface the orchestrator depends on.
type Store interface {
	// ResolvePath canonicalizes projectID+relPath and fails with
	// ErrPathTraversal when the result leaves the project directory.
	ResolvePath(projectID, relPath string) (string, error)

	// WriteFile creates the project directory if needed, checks free
	// space and writes content atomically.
	WriteFile(projectID, relPath, content string) error

	// ReadFile returns file content, or "" on any failure. Callers
	// cannot distinguish an empty file from a failed read through this
	// method; the cause is logged internally. Use FileExists when the
	// distinction matters.
	ReadFile(projectID, relPath string) string

	// FileExists reports whether the file exists inside the project
	// directory.
	FileExists(projectID, relPath string) bool

	// ListFiles walks the project directory and returns relative paths
	// in deterministic (sorted) order, excluding the state snapshot.
	// A missing project directory yields an empty list.
	ListFiles(projectID string) ([]string, error)

	// SaveState persists the serialized project snapshot.
	SaveState(projectID string, snapshot []byte) error

	// LoadState retrieves the serialized snapshot, or ErrStateNotFound.
	LoadState(projectID string) ([]byte, error)

	// ProjectDir returns the absolute project directory path.
	ProjectDir(projectID string) string

	// ProjectExists reports whether the project directory exists.
	ProjectExists(projectID string) bool

	// ListProjects returns ids of all project directories under the
	// workspace root.
	ListProjects() ([]string, error)

	// CheckDiskSpace reports whether at least minMB megabytes are
	// free. Inspection errors are treated as "space available" so a
	// broken probe never blocks all writes.
	CheckDiskSpace(minMB int64) bool
}

// fileStore implements Store on the local filesystem.
type fileStore struct {
	root   string
	cfg    config.WorkspaceConfig
	logger *zap.Logger
}

// New creates a Store rooted at cfg.Root, creating the root directory
// if absent.
func New(cfg config.WorkspaceConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}

	logger.Info("artifact store initialized", zap.String("root", root))

	return &fileStore{root: root, cfg: cfg, logger: logger}, nil
}

func (s *fileStore) ProjectDir(projectID string) string {
	return filepath.Join(s.root, projectID)
}

func (s *fileStore) ProjectExists(projectID string) bool {
	if _, err := s.ResolvePath(projectID, "."); err != nil {
		return false
	}
	info, err := os.Stat(s.ProjectDir(projectID))
	return err == nil && info.IsDir()
}

// ResolvePath is the traversal guard. It runs before every read and
// write.
func (s *fileStore) ResolvePath(projectID, relPath string) (string, error) {
	if projectID == "" || strings.ContainsAny(projectID, `/\`) || projectID == ".." {
		return "", fmt.Errorf("%w: invalid project id %q", ErrPathTraversal, projectID)
	}
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%w: absolute path %q", ErrPathTraversal, relPath)
	}

	projectDir := filepath.Join(s.root, projectID)
	resolved := filepath.Clean(filepath.Join(projectDir, relPath))

	rel, err := filepath.Rel(projectDir, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		s.logger.Warn("blocked path traversal attempt",
			zap.String("project_id", projectID),
			zap.String("path", relPath))
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, relPath)
	}

	return resolved, nil
}

func (s *fileStore) WriteFile(projectID, relPath, content string) error {
	fullPath, err := s.ResolvePath(projectID, relPath)
	if err != nil {
		return err
	}

	projectDir := s.ProjectDir(projectID)
	if _, err := os.Stat(projectDir); os.IsNotExist(err) {
		if !s.CheckDiskSpace(s.cfg.MinFreeMB) {
			return fmt.Errorf("%w: below %dMB creating project directory", ErrInsufficientSpace, s.cfg.MinFreeMB)
		}
		if err := os.MkdirAll(projectDir, 0o755); err != nil {
			return fmt.Errorf("create project directory: %w", err)
		}
	}

	// Lower floor per write than for directory creation.
	if !s.CheckDiskSpace(s.cfg.WriteMinFreeMB) {
		return fmt.Errorf("%w: below %dMB writing %s", ErrInsufficientSpace, s.cfg.WriteMinFreeMB, relPath)
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}

	if err := atomicWrite(fullPath, []byte(content)); err != nil {
		return fmt.Errorf("write %s: %w", relPath, err)
	}

	s.logger.Debug("saved file",
		zap.String("project_id", projectID),
		zap.String("path", relPath),
		zap.Int("bytes", len(content)))
	return nil
}

// atomicWrite writes to a temp file in the target directory and
// renames it into place so readers never see a partial write.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *fileStore) ReadFile(projectID, relPath string) string {
	fullPath, err := s.ResolvePath(projectID, relPath)
	if err != nil {
		s.logger.Warn("read refused", zap.String("path", relPath), zap.Error(err))
		return ""
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		s.logger.Warn("read failed",
			zap.String("project_id", projectID),
			zap.String("path", relPath),
			zap.Error(err))
		return ""
	}
	return string(data)
}

func (s *fileStore) FileExists(projectID, relPath string) bool {
	fullPath, err := s.ResolvePath(projectID, relPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && !info.IsDir()
}

func (s *fileStore) ListFiles(projectID string) ([]string, error) {
	if _, err := s.ResolvePath(projectID, "."); err != nil {
		return nil, err
	}

	projectDir := s.ProjectDir(projectID)
	if _, err := os.Stat(projectDir); os.IsNotExist(err) {
		return []string{}, nil
	}

	var files []string
	err := filepath.WalkDir(projectDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(projectDir, path)
		if err != nil {
			return err
		}
		if rel == StateFileName {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk project directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

func (s *fileStore) SaveState(projectID string, snapshot []byte) error {
	return s.WriteFile(projectID, StateFileName, string(snapshot))
}

func (s *fileStore) LoadState(projectID string) ([]byte, error) {
	fullPath, err := s.ResolvePath(projectID, StateFileName)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if os.IsNotExist(err) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read state snapshot: %w", err)
	}
	return data, nil
}

func (s *fileStore) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read workspace root: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fileStore) CheckDiskSpace(minMB int64) bool {
	freeMB, err := freeMegabytes(s.root)
	if err != nil {
		// Fail open: a broken probe must not block all writes.
		s.logger.Warn("disk space check failed, assuming space available", zap.Error(err))
		return true
	}
	return freeMB >= minMB
}
