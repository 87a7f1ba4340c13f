package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/agents"
)

// AnalyzeProject maps an existing project's architecture. Read-only:
// neither the entity's status nor its artifacts change.
func (o *Orchestrator) AnalyzeProject(ctx context.Context, projectID string) (*agents.AnalysisReport, error) {
	p, err := o.GetProjectState(projectID)
	if err != nil {
		return nil, err
	}

	paths, err := o.store.ListFiles(projectID)
	if err != nil {
		return nil, err
	}
	filesByPath := make(map[string]string, len(paths))
	for _, path := range paths {
		if content := o.store.ReadFile(projectID, path); content != "" {
			filesByPath[path] = content
		}
	}

	anCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.AnalyzeTimeout))
	defer cancel()
	report, err := o.agents.Analyzer.Analyze(anCtx, filesByPath, p.Name(), p.Goal())
	if err != nil {
		return nil, err
	}
	o.logger.Info("analysis complete",
		zap.String("project", projectID),
		zap.Int("components", len(report.Components)))
	return report, nil
}
