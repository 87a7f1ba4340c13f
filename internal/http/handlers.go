package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/orchestrator"
	"github.com/fyrsmithlabs/craftd/internal/project"
	"github.com/fyrsmithlabs/craftd/internal/store"
)

// createTimeout bounds a whole background pipeline run, retries
// included. Generous on purpose: the per-stage timeouts inside the
// pipeline are the real guardrails.
const createTimeout = 30 * time.Minute

// CreateProjectRequest is the request body for POST /api/projects.
type CreateProjectRequest struct {
	Name        string   `json:"project_name"`
	Goal        string   `json:"goal"`
	TechStack   []string `json:"tech_stack"`
	StyleGuide  string   `json:"style_guide"`
	Constraints string   `json:"constraints"`
}

// CreateProjectResponse is the response body for POST /api/projects.
type CreateProjectResponse struct {
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// ProjectSummary is one entry in the GET /api/projects listing.
type ProjectSummary struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
}

// WriteFileRequest is the request body for POST /api/projects/:id/files.
type WriteFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// FileContentResponse is the response body for a single-file read.
type FileContentResponse struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (s *Server) handleConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"host": s.cfg.Host,
		"port": s.cfg.Port,
	})
}

// handleCreateProject validates the request, mints a project id and
// kicks off the pipeline in the background. The caller polls
// GET /api/projects/:id or subscribes to the event stream for
// progress.
func (s *Server) handleCreateProject(c echo.Context) error {
	var req CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Goal == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "goal field is required")
	}
	if req.Name == "" {
		req.Name = "Untitled Project"
	}

	id := uuid.NewString()[:8]
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), createTimeout)
		defer cancel()
		_, err := s.orch.CreateProjectWithRetry(ctx, orchestrator.CreateRequest{
			ID:          id,
			Name:        req.Name,
			Goal:        req.Goal,
			TechStack:   req.TechStack,
			StyleGuide:  req.StyleGuide,
			Constraints: req.Constraints,
		})
		if err != nil {
			s.logger.Error("background project creation failed",
				zap.String("project", id),
				zap.Error(err))
		}
	}()

	return c.JSON(http.StatusAccepted, CreateProjectResponse{
		ProjectID: id,
		Status:    string(project.StatusPending),
		Message:   "Project creation started",
	})
}

func (s *Server) handleListProjects(c echo.Context) error {
	ids, err := s.orch.ListProjects()
	if err != nil {
		s.logger.Error("project listing failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list projects")
	}

	summaries := make([]ProjectSummary, 0, len(ids))
	for _, id := range ids {
		p, err := s.orch.GetProjectState(id)
		if err != nil {
			s.logger.Warn("skipping unreadable project",
				zap.String("project", id),
				zap.Error(err))
			continue
		}
		summaries = append(summaries, ProjectSummary{
			ProjectID: p.ID(),
			Name:      p.Name(),
			Status:    string(p.Status()),
		})
	}
	return c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleGetProject(c echo.Context) error {
	p, err := s.orch.GetProjectState(c.Param("id"))
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "project not found")
		}
		s.logger.Error("project lookup failed",
			zap.String("project", c.Param("id")),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load project")
	}
	return c.JSON(http.StatusOK, p.Snapshot())
}

func (s *Server) handleListFiles(c echo.Context) error {
	id := c.Param("id")
	if !s.store.ProjectExists(id) {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}
	files, err := s.store.ListFiles(id)
	if err != nil {
		if errors.Is(err, store.ErrPathTraversal) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid project id")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list files")
	}
	return c.JSON(http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleGetFile(c echo.Context) error {
	id := c.Param("id")
	path := c.Param("*")
	if !s.store.FileExists(id, path) {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	return c.JSON(http.StatusOK, FileContentResponse{
		Path:    path,
		Content: s.store.ReadFile(id, path),
	})
}

func (s *Server) handleWriteFile(c echo.Context) error {
	id := c.Param("id")
	var req WriteFileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path field is required")
	}

	if err := s.store.WriteFile(id, req.Path, req.Content); err != nil {
		switch {
		case errors.Is(err, store.ErrPathTraversal):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid file path")
		case errors.Is(err, store.ErrInsufficientSpace):
			return echo.NewHTTPError(http.StatusInsufficientStorage, "insufficient disk space")
		default:
			s.logger.Error("file write failed",
				zap.String("project", id),
				zap.String("path", req.Path),
				zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "could not write file")
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "written", "path": req.Path})
}

func (s *Server) handleAnalyze(c echo.Context) error {
	report, err := s.orch.AnalyzeProject(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "project not found")
		}
		s.logger.Error("analysis failed",
			zap.String("project", c.Param("id")),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "analysis failed")
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleStartChallenge(c echo.Context) error {
	info, err := s.orch.StartChallenge(c.Request().Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, project.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "project not found")
		case errors.Is(err, orchestrator.ErrNoEligibleFile):
			return echo.NewHTTPError(http.StatusConflict, "no eligible file for a challenge")
		default:
			s.logger.Error("challenge start failed",
				zap.String("project", c.Param("id")),
				zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "could not start challenge")
		}
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleVerifyChallenge(c echo.Context) error {
	result, err := s.orch.VerifyChallenge(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, project.ErrNoActiveChallenge) {
			return echo.NewHTTPError(http.StatusConflict, "no active challenge")
		}
		s.logger.Error("challenge verification failed",
			zap.String("project", c.Param("id")),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "verification failed")
	}
	return c.JSON(http.StatusOK, result)
}
