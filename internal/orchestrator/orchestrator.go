package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/agents"
	"github.com/fyrsmithlabs/craftd/internal/config"
	"github.com/fyrsmithlabs/craftd/internal/events"
	"github.com/fyrsmithlabs/craftd/internal/lang"
	"github.com/fyrsmithlabs/craftd/internal/project"
	"github.com/fyrsmithlabs/craftd/internal/runner"
	"github.com/fyrsmithlabs/craftd/internal/store"
)

// retryDelay separates whole-pipeline retry attempts.
const retryDelay = 2 * time.Second

// ErrNoEligibleFile indicates a challenge was requested for a project
// with no sabotage-able source file.
var ErrNoEligibleFile = errors.New("no eligible file for challenge")

// Planner produces a project plan from a goal.
type Planner interface {
	CreatePlan(ctx context.Context, goal, name string, techStack []string) (*agents.Plan, error)
}

// Developer generates file content from a plan entry.
type Developer interface {
	WriteFile(ctx context.Context, spec agents.FileSpec, plan *agents.Plan, feedback string) (string, error)
}

// Enforcer audits generated code against style and constraint rules.
type Enforcer interface {
	Enforce(ctx context.Context, code, path, styleGuide, constraints string) (*agents.EnforcementReport, error)
}

// Tester generates a runnable test artifact for a source file.
type Tester interface {
	CreateTests(ctx context.Context, code, path string, language lang.Language) (string, error)
}

// Fixer rewrites failing code given the test diagnostic.
type Fixer interface {
	FixCode(ctx context.Context, code, errorMessage, path string, language lang.Language) (string, error)
}

// Saboteur plants a bug in working code for the challenge mode.
type Saboteur interface {
	Sabotage(ctx context.Context, code, path string, language lang.Language) (*agents.SabotageResult, error)
}

// Analyzer maps a project's architecture.
type Analyzer interface {
	Analyze(ctx context.Context, filesByPath map[string]string, name, goal string) (*agents.AnalysisReport, error)
}

// Agents groups the pipeline's agent collaborators.
type Agents struct {
	Planner   Planner
	Developer Developer
	Enforcer  Enforcer
	Tester    Tester
	Fixer     Fixer
	Saboteur  Saboteur
	Analyzer  Analyzer
}

// CreateRequest carries the caller's inputs for a pipeline run.
type CreateRequest struct {
	ID          string
	Name        string
	Goal        string
	TechStack   []string
	StyleGuide  string
	Constraints string
}

// Orchestrator runs the generation pipeline and owns the project read
// path. Safe for concurrent use.
type Orchestrator struct {
	cfg      config.PipelineConfig
	agents   Agents
	registry *project.Registry
	store    store.Store
	verifier runner.Verifier
	sink     events.Sink
	persist  *persister
	metrics  *Metrics
	logger   *zap.Logger

	// randIntn is swapped in tests for deterministic file choice.
	randIntn func(n int) int
}

// New creates an Orchestrator. The registry, store and verifier are
// required; sink, metrics and logger fall back to no-ops.
func New(cfg config.PipelineConfig, ag Agents, reg *project.Registry, st store.Store, v runner.Verifier, sink events.Sink, m *Metrics, logger *zap.Logger) (*Orchestrator, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	if st == nil {
		return nil, errors.New("store is required")
	}
	if v == nil {
		return nil, errors.New("verifier is required")
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	if m == nil {
		m = NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		agents:   ag,
		registry: reg,
		store:    st,
		verifier: v,
		sink:     sink,
		persist:  newPersister(st, cfg.PersistQueueSize, logger),
		metrics:  m,
		logger:   logger,
		randIntn: rand.Intn,
	}, nil
}

// Close drains the snapshot writer. Call once at shutdown.
func (o *Orchestrator) Close() {
	o.persist.Close()
}

// CreateProject runs the full pipeline for one project. The returned
// entity is registered and reflects the final state even on error.
func (o *Orchestrator) CreateProject(ctx context.Context, req CreateRequest) (*project.Project, error) {
	p := project.New(req.ID, req.Name, req.Goal, req.TechStack)
	if req.StyleGuide != "" {
		p.SetMetadata("style_guide", req.StyleGuide)
	}
	if req.Constraints != "" {
		p.SetMetadata("constraints", req.Constraints)
	}
	o.registry.Put(p)

	if err := o.runPipeline(ctx, p, req); err != nil {
		o.failProject(p, err)
		return p, err
	}
	return p, nil
}

// CreateProjectWithRetry runs the pipeline, retrying a failed run up
// to the configured count. Each retry starts from a fresh entity so a
// half-built project never leaks into the next attempt.
func (o *Orchestrator) CreateProjectWithRetry(ctx context.Context, req CreateRequest) (*project.Project, error) {
	retries := o.cfg.CreateRetries
	if retries <= 0 {
		retries = 1
	}
	var (
		p   *project.Project
		err error
	)
	for attempt := 1; attempt <= retries; attempt++ {
		p, err = o.CreateProject(ctx, req)
		if err == nil {
			return p, nil
		}
		if ctx.Err() != nil || attempt == retries {
			break
		}
		o.logger.Warn("pipeline attempt failed, retrying",
			zap.String("project", req.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return p, err
		case <-time.After(retryDelay):
		}
	}
	return p, err
}

func (o *Orchestrator) runPipeline(ctx context.Context, p *project.Project, req CreateRequest) error {
	plan, err := o.planStage(ctx, p)
	if err != nil {
		return err
	}
	primary, err := o.codeStage(ctx, p, plan, req)
	if err != nil {
		return err
	}
	o.installDependencies(ctx, p, plan, primary)
	if err := o.testStage(ctx, p, plan); err != nil {
		return err
	}

	if err := p.UpdateStatus(project.StatusCompleted); err != nil {
		return err
	}
	o.emitProgress(p, "completed", "Project generation complete", map[string]any{
		"files_count": len(p.Files()),
	})
	o.metrics.PipelineRuns.WithLabelValues("completed").Inc()
	o.logger.Info("pipeline completed",
		zap.String("project", p.ID()),
		zap.Int("files", len(p.Files())))
	return nil
}

// planStage is the one stage whose timeout is fatal: without a plan
// there is nothing to build, and the planner already degrades
// malformed output to a deterministic fallback on its own.
func (o *Orchestrator) planStage(ctx context.Context, p *project.Project) (*agents.Plan, error) {
	if err := p.UpdateStatus(project.StatusPlanning); err != nil {
		return nil, err
	}
	o.emitProgress(p, "planning", "Creating project plan...", nil)

	planCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.PlanningTimeout))
	defer cancel()
	plan, err := o.agents.Planner.CreatePlan(planCtx, p.Goal(), p.Name(), p.TechStack())
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}
	for _, task := range plan.Tasks {
		p.AddTask(task)
	}
	p.AddLog("planning", "Plan created", map[string]any{
		"files": len(plan.Files),
		"tasks": len(plan.Tasks),
	})
	o.emitProgress(p, "planning", fmt.Sprintf("Plan ready with %d files", len(plan.Files)), nil)
	return plan, nil
}

// codeStage generates every planned file. A single file failing to
// generate or persist is logged and skipped; only parent cancellation
// aborts the stage. Returns the last non-documentation language seen,
// used for dependency installation.
func (o *Orchestrator) codeStage(ctx context.Context, p *project.Project, plan *agents.Plan, req CreateRequest) (lang.Language, error) {
	if err := p.UpdateStatus(project.StatusCoding); err != nil {
		return lang.Unknown, err
	}
	o.emitProgress(p, "coding", "Generating project files...", nil)

	primary := lang.Python
	for _, spec := range plan.Files {
		if err := ctx.Err(); err != nil {
			return primary, err
		}
		l := lang.Parse(spec.Language)
		if !l.IsDocumentation() && l != lang.Unknown {
			primary = l
		}
		o.emitProgress(p, "coding", "Creating file: "+spec.Path, nil)

		code, err := o.generateFile(ctx, p, spec, plan, req)
		if err != nil {
			p.AddLog("error", "File generation failed: "+spec.Path, map[string]any{"error": err.Error()})
			o.logger.Warn("file generation failed",
				zap.String("project", p.ID()),
				zap.String("path", spec.Path),
				zap.Error(err))
			continue
		}
		if err := o.store.WriteFile(p.ID(), spec.Path, code); err != nil {
			p.AddLog("error", "File write failed: "+spec.Path, map[string]any{"error": err.Error()})
			o.logger.Warn("file write failed",
				zap.String("project", p.ID()),
				zap.String("path", spec.Path),
				zap.Error(err))
			continue
		}
		if err := p.AddFile(spec.Path); err != nil {
			o.logger.Warn("duplicate planned file", zap.String("path", spec.Path))
			continue
		}
		o.metrics.FilesGenerated.Inc()
		p.AddLog("file_created", "Created "+spec.Path, nil)
		o.emitProgress(p, "coding", "Created file: "+spec.Path, map[string]any{"file": spec.Path})
	}
	return primary, nil
}

// generateFile produces one file's content, running the enforcement
// audit and at most one feedback-driven regeneration for source
// files. Enforcement trouble never loses code: any audit or
// regeneration failure falls back to the pre-audit content.
func (o *Orchestrator) generateFile(ctx context.Context, p *project.Project, spec agents.FileSpec, plan *agents.Plan, req CreateRequest) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.GenerationTimeout))
	defer cancel()
	code, err := o.agents.Developer.WriteFile(genCtx, spec, plan, "")
	if err != nil {
		return "", err
	}

	if lang.Parse(spec.Language).IsDocumentation() {
		return code, nil
	}

	enfCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.EnforcementTimeout))
	defer cancel()
	report, err := o.agents.Enforcer.Enforce(enfCtx, code, spec.Path, req.StyleGuide, req.Constraints)
	if err != nil || report == nil || report.Compliant {
		return code, nil
	}

	p.AddLog("enforcement", "Violations found in "+spec.Path, map[string]any{
		"score":      report.Score,
		"violations": len(report.Violations),
	})
	o.emitProgress(p, "coding", "Regenerating "+spec.Path+" to address violations", nil)

	regenCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.RegenerationTimeout))
	defer cancel()
	regenerated, err := o.agents.Developer.WriteFile(regenCtx, spec, plan, report.FeedbackSummary())
	if err != nil {
		o.logger.Warn("regeneration failed, keeping original",
			zap.String("path", spec.Path),
			zap.Error(err))
		return code, nil
	}
	return regenerated, nil
}

// installDependencies is best effort: a failed install is recorded
// and the pipeline moves on to testing, where the failure will show
// up as a diagnostic if it matters.
func (o *Orchestrator) installDependencies(ctx context.Context, p *project.Project, plan *agents.Plan, primary lang.Language) {
	if len(plan.Dependencies) == 0 {
		return
	}
	o.emitProgress(p, "coding", "Installing dependencies...", map[string]any{
		"packages": plan.Dependencies,
	})
	instCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.InstallTimeout))
	defer cancel()
	if err := o.verifier.InstallDependencies(instCtx, o.store.ProjectDir(p.ID()), plan.Dependencies, primary); err != nil {
		p.AddLog("warning", "Dependency install failed", map[string]any{"error": err.Error()})
		o.logger.Warn("dependency install failed",
			zap.String("project", p.ID()),
			zap.Error(err))
	}
}

// testStage generates, persists and runs a test artifact for every
// generated source file, fixing failures within the attempt bound.
func (o *Orchestrator) testStage(ctx context.Context, p *project.Project, plan *agents.Plan) error {
	if err := p.UpdateStatus(project.StatusTesting); err != nil {
		return err
	}
	o.emitProgress(p, "testing", "Generating and running tests...", nil)

	langByPath := make(map[string]lang.Language, len(plan.Files))
	for _, spec := range plan.Files {
		langByPath[spec.Path] = lang.Parse(spec.Language)
	}

	for _, path := range p.Files() {
		if err := ctx.Err(); err != nil {
			return err
		}
		l, ok := langByPath[path]
		if !ok {
			l = lang.FromPath(path)
		}
		if l.IsDocumentation() || lang.IsTestFile(path) {
			continue
		}
		code := o.store.ReadFile(p.ID(), path)
		if code == "" {
			continue
		}
		o.testFile(ctx, p, path, code, l)
	}
	return nil
}

func (o *Orchestrator) testFile(ctx context.Context, p *project.Project, path, code string, l lang.Language) {
	testPath := l.TestFileName(path)
	if testPath == "" {
		return
	}
	o.emitProgress(p, "testing", "Creating tests for "+path, nil)

	genCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.TestGenTimeout))
	testCode, err := o.agents.Tester.CreateTests(genCtx, code, path, l)
	cancel()
	if err != nil {
		p.AddLog("warning", "Test generation failed for "+path, map[string]any{"error": err.Error()})
		o.logger.Warn("test generation failed",
			zap.String("project", p.ID()),
			zap.String("path", path),
			zap.Error(err))
		return
	}
	if err := o.store.WriteFile(p.ID(), testPath, testCode); err != nil {
		p.AddLog("error", "Test write failed: "+testPath, map[string]any{"error": err.Error()})
		return
	}
	if err := p.AddFile(testPath); err == nil {
		p.AddLog("file_created", "Created "+testPath, nil)
		o.emitProgress(p, "testing", "Created file: "+testPath, map[string]any{"file": testPath})
	}

	result := o.runTests(ctx, p, testPath, l)
	if result == nil {
		return
	}
	if result.Success {
		p.AddLog("test_success", "Tests passed for "+path, nil)
		o.emitProgress(p, "testing", "Tests passed: "+path, nil)
		return
	}
	o.fixLoop(ctx, p, path, testPath, code, l, *result)
}

// runTests executes one test artifact. A nil return means the
// language has no tooling and the file is skipped without judgment.
func (o *Orchestrator) runTests(ctx context.Context, p *project.Project, testPath string, l lang.Language) *runner.Result {
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.TestRunTimeout))
	defer cancel()
	result, err := o.verifier.RunTest(runCtx, testPath, o.store.ProjectDir(p.ID()), l)
	if err != nil {
		if errors.Is(err, runner.ErrUnsupportedLanguage) {
			p.AddLog("warning", "No test tooling for "+l.String(), nil)
			return nil
		}
		return &runner.Result{Success: false, Error: err.Error(), ExitCode: -1}
	}
	return &result
}

// fixLoop retries a failing file through the fixer, bounded by the
// configured attempt count. A fix call that times out abandons the
// loop: the provider is struggling and further attempts would only
// stall the run. Exhausting the attempts is not fatal, the failure
// stays on the project record and the pipeline continues.
func (o *Orchestrator) fixLoop(ctx context.Context, p *project.Project, path, testPath, code string, l lang.Language, result runner.Result) {
	attempts := o.cfg.FixAttempts
	if attempts <= 0 {
		attempts = 2
	}
	p.AddLog("test_failure", "Tests failed for "+path, map[string]any{
		"error":  result.Error,
		"output": result.Output,
	})
	for attempt := 1; attempt <= attempts; attempt++ {
		o.emitProgress(p, "fixing", fmt.Sprintf("Fixing %s (attempt %d/%d)", path, attempt, attempts), nil)
		o.metrics.FixAttempts.Inc()

		fixCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.FixTimeout))
		fixed, err := o.agents.Fixer.FixCode(fixCtx, code, result.Error+"\n"+result.Output, path, l)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				o.logger.Warn("fix attempt timed out, abandoning",
					zap.String("project", p.ID()),
					zap.String("path", path))
				break
			}
			p.AddLog("warning", "Fix attempt failed for "+path, map[string]any{
				"error":   err.Error(),
				"attempt": attempt,
			})
			o.logger.Warn("fix attempt failed",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		if err := o.store.WriteFile(p.ID(), path, fixed); err != nil {
			o.logger.Warn("fixed code write failed",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		code = fixed

		rerun := o.runTests(ctx, p, testPath, l)
		if rerun == nil {
			return
		}
		result = *rerun
		if result.Success {
			p.AddLog("test_success", "Tests fixed for "+path, map[string]any{"attempt": attempt})
			o.emitProgress(p, "fixing", "Tests now pass: "+path, nil)
			return
		}
		p.AddLog("test_failure", "Tests failed for "+path, map[string]any{
			"error":  result.Error,
			"output": result.Output,
		})
	}
	p.AddLog("warning", "Could not fix all test failures for "+path, map[string]any{"error": result.Error})
	o.emitProgress(p, "fixing", "Could not fix all issues: "+path, nil)
}

// emitProgress appends to the entity log, publishes to the sink and
// queues a snapshot write. None of the three may block or fail the
// pipeline.
func (o *Orchestrator) emitProgress(p *project.Project, stage, message string, payload map[string]any) {
	p.AddLog("progress", message, payload)
	err := o.sink.Publish(events.Event{
		Type:      "progress",
		ProjectID: p.ID(),
		Stage:     stage,
		Message:   message,
		Payload:   payload,
	})
	if err != nil {
		o.logger.Debug("progress publish failed",
			zap.String("project", p.ID()),
			zap.Error(err))
	}
	o.persist.Enqueue(p.Snapshot())
}

func (o *Orchestrator) failProject(p *project.Project, cause error) {
	p.AddError(cause.Error())
	if err := p.UpdateStatus(project.StatusFailed); err != nil {
		o.logger.Warn("could not mark project failed",
			zap.String("project", p.ID()),
			zap.Error(err))
	}
	p.AddLog("error", "Pipeline failed", map[string]any{"error": cause.Error()})
	o.emitProgress(p, "failed", "Project generation failed: "+cause.Error(), nil)
	o.metrics.PipelineRuns.WithLabelValues("failed").Inc()
	o.logger.Error("pipeline failed",
		zap.String("project", p.ID()),
		zap.Error(cause))
}
