package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/agents"
	"github.com/fyrsmithlabs/craftd/internal/config"
	"github.com/fyrsmithlabs/craftd/internal/events"
	"github.com/fyrsmithlabs/craftd/internal/lang"
	"github.com/fyrsmithlabs/craftd/internal/project"
	"github.com/fyrsmithlabs/craftd/internal/runner"
	"github.com/fyrsmithlabs/craftd/internal/store"
)

// fakeAgents scripts every agent call. Zero-value fields fall back to
// benign defaults so tests only override what they exercise.
type fakeAgents struct {
	plan    *agents.Plan
	planErr error

	writeFile   func(spec agents.FileSpec, feedback string) (string, error)
	enforce     func(code, path string) (*agents.EnforcementReport, error)
	createTests func(code, path string) (string, error)
	fixCode     func(code, errMsg, path string) (string, error)
	sabotage    func(code, path string) (*agents.SabotageResult, error)
	analyze     func(files map[string]string) (*agents.AnalysisReport, error)

	mu          sync.Mutex
	fixCalls    int
	regenCalled bool
}

func (f *fakeAgents) CreatePlan(ctx context.Context, goal, name string, techStack []string) (*agents.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.planErr != nil {
		return nil, f.planErr
	}
	if f.plan != nil {
		return f.plan, nil
	}
	return agents.FallbackPlan(name, goal), nil
}

func (f *fakeAgents) WriteFile(ctx context.Context, spec agents.FileSpec, plan *agents.Plan, feedback string) (string, error) {
	if feedback != "" {
		f.mu.Lock()
		f.regenCalled = true
		f.mu.Unlock()
	}
	if f.writeFile != nil {
		return f.writeFile(spec, feedback)
	}
	return "# " + spec.Path + "\n", nil
}

func (f *fakeAgents) Enforce(ctx context.Context, code, path, styleGuide, constraints string) (*agents.EnforcementReport, error) {
	if f.enforce != nil {
		return f.enforce(code, path)
	}
	return &agents.EnforcementReport{Compliant: true, Score: 100}, nil
}

func (f *fakeAgents) CreateTests(ctx context.Context, code, path string, language lang.Language) (string, error) {
	if f.createTests != nil {
		return f.createTests(code, path)
	}
	return "assert True\n", nil
}

func (f *fakeAgents) FixCode(ctx context.Context, code, errorMessage, path string, language lang.Language) (string, error) {
	f.mu.Lock()
	f.fixCalls++
	f.mu.Unlock()
	if f.fixCode != nil {
		return f.fixCode(code, errorMessage, path)
	}
	return code, nil
}

func (f *fakeAgents) Sabotage(ctx context.Context, code, path string, language lang.Language) (*agents.SabotageResult, error) {
	if f.sabotage != nil {
		return f.sabotage(code, path)
	}
	return &agents.SabotageResult{
		SabotagedCode: "# broken\n" + code,
		Hint:          "something is off",
		Intel:         "look closely",
	}, nil
}

func (f *fakeAgents) Analyze(ctx context.Context, filesByPath map[string]string, name, goal string) (*agents.AnalysisReport, error) {
	if f.analyze != nil {
		return f.analyze(filesByPath)
	}
	return &agents.AnalysisReport{ArchitectureSummary: "flat"}, nil
}

func (f *fakeAgents) asAgents() Agents {
	return Agents{
		Planner:   f,
		Developer: f,
		Enforcer:  f,
		Tester:    f,
		Fixer:     f,
		Saboteur:  f,
		Analyzer:  f,
	}
}

// fakeVerifier scripts test runs per test path.
type fakeVerifier struct {
	mu      sync.Mutex
	results map[string][]runner.Result
	runs    []string
	instErr error
}

func (v *fakeVerifier) RunTest(ctx context.Context, testPath, workDir string, language lang.Language) (runner.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.runs = append(v.runs, testPath)
	queue := v.results[testPath]
	if len(queue) == 0 {
		return runner.Result{Success: true, Output: "ok"}, nil
	}
	result := queue[0]
	v.results[testPath] = queue[1:]
	return result, nil
}

func (v *fakeVerifier) InstallDependencies(ctx context.Context, workDir string, packages []string, language lang.Language) error {
	return v.instErr
}

// recordingSink captures published events in order.
type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Publish(e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) stages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		out = append(out, e.Stage)
	}
	return out
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		PlanningTimeout:     config.Duration(5 * time.Second),
		GenerationTimeout:   config.Duration(5 * time.Second),
		EnforcementTimeout:  config.Duration(5 * time.Second),
		RegenerationTimeout: config.Duration(5 * time.Second),
		TestGenTimeout:      config.Duration(5 * time.Second),
		TestRunTimeout:      config.Duration(5 * time.Second),
		FixTimeout:          config.Duration(5 * time.Second),
		SabotageTimeout:     config.Duration(5 * time.Second),
		AnalyzeTimeout:      config.Duration(5 * time.Second),
		InstallTimeout:      config.Duration(5 * time.Second),
		FixAttempts:         2,
		CreateRetries:       1,
		PersistQueueSize:    16,
	}
}

func newTestOrchestrator(t *testing.T, fa *fakeAgents, fv *fakeVerifier) (*Orchestrator, store.Store, *recordingSink) {
	t.Helper()
	st, err := store.New(config.WorkspaceConfig{Root: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	sink := &recordingSink{}
	o, err := New(testPipelineConfig(), fa.asAgents(), project.NewRegistry(), st, fv, sink, nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(o.Close)
	return o, st, sink
}

func calculatorPlan() *agents.Plan {
	return &agents.Plan{
		ProjectName: "calc",
		ProjectGoal: "a calculator",
		Tasks:       []string{"write main"},
		Files: []agents.FileSpec{
			{Path: "main.py", Description: "calculator entry point", Language: "python"},
		},
	}
}

func TestCreateProject_HappyPath(t *testing.T) {
	fa := &fakeAgents{plan: calculatorPlan()}
	fv := &fakeVerifier{}
	o, st, sink := newTestOrchestrator(t, fa, fv)

	p, err := o.CreateProject(context.Background(), CreateRequest{
		ID:   "proj-1",
		Name: "calc",
		Goal: "a calculator",
	})
	require.NoError(t, err)

	assert.Equal(t, project.StatusCompleted, p.Status())
	assert.Equal(t, []string{"main.py", "test_main.py"}, p.Files())
	assert.NotEmpty(t, st.ReadFile("proj-1", "main.py"))
	assert.NotEmpty(t, st.ReadFile("proj-1", "test_main.py"))

	stages := sink.stages()
	assert.Contains(t, stages, "planning")
	assert.Contains(t, stages, "coding")
	assert.Contains(t, stages, "testing")
	assert.Equal(t, "completed", stages[len(stages)-1])
}

func TestCreateProject_PlanningTimeoutIsFatal(t *testing.T) {
	fa := &fakeAgents{planErr: context.DeadlineExceeded}
	fv := &fakeVerifier{}
	o, st, _ := newTestOrchestrator(t, fa, fv)

	p, err := o.CreateProject(context.Background(), CreateRequest{ID: "proj-2", Goal: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, project.StatusFailed, p.Status())
	assert.Empty(t, p.Files())
	assert.NotEmpty(t, p.Errors())

	files, lerr := st.ListFiles("proj-2")
	require.NoError(t, lerr)
	assert.Empty(t, files)
}

func TestCreateProject_FileGenerationFailureIsNotFatal(t *testing.T) {
	plan := calculatorPlan()
	plan.Files = append(plan.Files, agents.FileSpec{Path: "bad.py", Language: "python"})
	fa := &fakeAgents{
		plan: plan,
		writeFile: func(spec agents.FileSpec, feedback string) (string, error) {
			if spec.Path == "bad.py" {
				return "", errors.New("provider hiccup")
			}
			return "print('ok')\n", nil
		},
	}
	o, _, _ := newTestOrchestrator(t, fa, &fakeVerifier{})

	p, err := o.CreateProject(context.Background(), CreateRequest{ID: "proj-3", Goal: "x"})
	require.NoError(t, err)
	assert.Equal(t, project.StatusCompleted, p.Status())
	assert.NotContains(t, p.Files(), "bad.py")
	assert.Contains(t, p.Files(), "main.py")
}

func TestCreateProject_EnforcementRegeneratesOnce(t *testing.T) {
	fa := &fakeAgents{
		plan: calculatorPlan(),
		enforce: func(code, path string) (*agents.EnforcementReport, error) {
			return &agents.EnforcementReport{
				Compliant:  false,
				Score:      40,
				Violations: []agents.Violation{{Rule: "naming", Issue: "bad names", Fix: "rename"}},
			}, nil
		},
	}
	o, st, _ := newTestOrchestrator(t, fa, &fakeVerifier{})

	_, err := o.CreateProject(context.Background(), CreateRequest{
		ID:         "proj-4",
		Goal:       "x",
		StyleGuide: "PEP8",
	})
	require.NoError(t, err)
	assert.True(t, fa.regenCalled, "violations should trigger one regeneration pass")
	assert.NotEmpty(t, st.ReadFile("proj-4", "main.py"))
}

func TestCreateProject_EnforcementFailureKeepsOriginal(t *testing.T) {
	fa := &fakeAgents{
		plan: calculatorPlan(),
		writeFile: func(spec agents.FileSpec, feedback string) (string, error) {
			return "original code\n", nil
		},
		enforce: func(code, path string) (*agents.EnforcementReport, error) {
			return nil, context.DeadlineExceeded
		},
	}
	o, st, _ := newTestOrchestrator(t, fa, &fakeVerifier{})

	_, err := o.CreateProject(context.Background(), CreateRequest{ID: "proj-5", Goal: "x"})
	require.NoError(t, err)
	assert.False(t, fa.regenCalled)
	assert.Equal(t, "original code\n", st.ReadFile("proj-5", "main.py"))
}

func TestCreateProject_FixLoopBoundedAtTwoAttempts(t *testing.T) {
	fv := &fakeVerifier{results: map[string][]runner.Result{
		"test_main.py": {
			{Success: false, Error: "AssertionError"},
			{Success: false, Error: "AssertionError"},
			{Success: false, Error: "AssertionError"},
		},
	}}
	fa := &fakeAgents{plan: calculatorPlan()}
	o, _, _ := newTestOrchestrator(t, fa, fv)

	p, err := o.CreateProject(context.Background(), CreateRequest{ID: "proj-6", Goal: "x"})
	require.NoError(t, err, "unfixable tests must not fail the pipeline")
	assert.Equal(t, project.StatusCompleted, p.Status())
	assert.Equal(t, 2, fa.fixCalls, "fix loop must stop after the attempt bound")

	var warned bool
	for _, entry := range p.Logs() {
		if entry.Type == "warning" {
			warned = true
		}
	}
	assert.True(t, warned, "exhausted fix loop should leave a warning on the record")
}

func TestCreateProject_FixFailureLoggedWithoutStaleRerun(t *testing.T) {
	fv := &fakeVerifier{results: map[string][]runner.Result{
		"test_main.py": {{Success: false, Error: "AssertionError"}},
	}}
	fa := &fakeAgents{
		plan: calculatorPlan(),
		fixCode: func(code, errMsg, path string) (string, error) {
			return "", errors.New("provider hiccup")
		},
	}
	o, _, _ := newTestOrchestrator(t, fa, fv)

	p, err := o.CreateProject(context.Background(), CreateRequest{ID: "proj-13", Goal: "x"})
	require.NoError(t, err)
	assert.Equal(t, 2, fa.fixCalls)

	// A failed fix call means no rerun happened, so the original test
	// failure is recorded once and each failed attempt is logged as a
	// warning rather than a repeat of the stale result.
	var failures, fixWarnings int
	for _, entry := range p.Logs() {
		switch {
		case entry.Type == "test_failure":
			failures++
		case entry.Type == "warning" && strings.HasPrefix(entry.Message, "Fix attempt failed"):
			fixWarnings++
		}
	}
	assert.Equal(t, 1, failures, "no rerun ran, so only the original failure is logged")
	assert.Equal(t, 2, fixWarnings)
}

func TestCreateProject_FixTimeoutAbandonsLoop(t *testing.T) {
	fv := &fakeVerifier{results: map[string][]runner.Result{
		"test_main.py": {{Success: false, Error: "boom"}},
	}}
	fa := &fakeAgents{
		plan: calculatorPlan(),
		fixCode: func(code, errMsg, path string) (string, error) {
			return "", context.DeadlineExceeded
		},
	}
	o, _, _ := newTestOrchestrator(t, fa, fv)

	p, err := o.CreateProject(context.Background(), CreateRequest{ID: "proj-7", Goal: "x"})
	require.NoError(t, err)
	assert.Equal(t, project.StatusCompleted, p.Status())
	assert.Equal(t, 1, fa.fixCalls, "a timed-out fix call must end the loop immediately")
}

func TestCreateProject_FixSucceedsOnSecondAttempt(t *testing.T) {
	fv := &fakeVerifier{results: map[string][]runner.Result{
		"test_main.py": {
			{Success: false, Error: "fail one"},
			{Success: false, Error: "fail two"},
			{Success: true, Output: "ok"},
		},
	}}
	fa := &fakeAgents{plan: calculatorPlan()}
	o, st, _ := newTestOrchestrator(t, fa, fv)

	p, err := o.CreateProject(context.Background(), CreateRequest{ID: "proj-8", Goal: "x"})
	require.NoError(t, err)
	assert.Equal(t, project.StatusCompleted, p.Status())
	assert.Equal(t, 2, fa.fixCalls)
	assert.NotEmpty(t, st.ReadFile("proj-8", "main.py"))
}

func TestCreateProject_DocumentationSkipsEnforcementAndTests(t *testing.T) {
	plan := calculatorPlan()
	plan.Files = append(plan.Files, agents.FileSpec{Path: "README.md", Language: "markdown"})
	enforced := make(map[string]bool)
	fa := &fakeAgents{
		plan: plan,
		enforce: func(code, path string) (*agents.EnforcementReport, error) {
			enforced[path] = true
			return &agents.EnforcementReport{Compliant: true, Score: 100}, nil
		},
	}
	fv := &fakeVerifier{}
	o, _, _ := newTestOrchestrator(t, fa, fv)

	p, err := o.CreateProject(context.Background(), CreateRequest{ID: "proj-9", Goal: "x"})
	require.NoError(t, err)
	assert.False(t, enforced["README.md"])
	assert.Contains(t, p.Files(), "README.md")
	for _, run := range fv.runs {
		assert.NotEqual(t, lang.Markdown.TestFileName("README.md"), run)
	}
}

func TestCreateProject_InstallFailureIsNotFatal(t *testing.T) {
	plan := calculatorPlan()
	plan.Dependencies = []string{"requests"}
	fa := &fakeAgents{plan: plan}
	fv := &fakeVerifier{instErr: errors.New("pip exploded")}
	o, _, _ := newTestOrchestrator(t, fa, fv)

	p, err := o.CreateProject(context.Background(), CreateRequest{ID: "proj-10", Goal: "x"})
	require.NoError(t, err)
	assert.Equal(t, project.StatusCompleted, p.Status())
}

func TestCreateProjectWithRetry_FreshEntityPerAttempt(t *testing.T) {
	// CreateRetries is 1 here, so a failed run surfaces directly.
	fa := &fakeAgents{planErr: context.DeadlineExceeded}
	o, _, _ := newTestOrchestrator(t, fa, &fakeVerifier{})

	p, err := o.CreateProjectWithRetry(context.Background(), CreateRequest{ID: "proj-11", Goal: "x"})
	require.Error(t, err)
	assert.Equal(t, project.StatusFailed, p.Status())

	registered, gerr := o.GetProjectState("proj-11")
	require.NoError(t, gerr)
	assert.Equal(t, project.StatusFailed, registered.Status())
}

func TestCreateProject_SnapshotPersisted(t *testing.T) {
	fa := &fakeAgents{plan: calculatorPlan()}
	o, st, _ := newTestOrchestrator(t, fa, &fakeVerifier{})

	_, err := o.CreateProject(context.Background(), CreateRequest{ID: "proj-12", Goal: "x"})
	require.NoError(t, err)
	o.Close()

	data, err := st.LoadState("proj-12")
	require.NoError(t, err)
	snap, err := project.DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, "proj-12", snap.ProjectID)
	assert.Equal(t, project.StatusCompleted, snap.Status)
	assert.Contains(t, snap.Files, "main.py")
}
