package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/llm"
)

const plannerSystemPrompt = `You are a Senior Software Architect with 15+ years of experience.
Break down project requirements into actionable development tasks.

CRITICAL: Return ONLY valid JSON, no other text.

Output Format:
{
    "tasks": ["task1", "task2"],
    "files": [
        {
            "path": "path/to/file.py",
            "description": "what this file does",
            "language": "python"
        }
    ],
    "dependencies": ["package1", "package2"],
    "test_files": ["test_file1.py"],
    "estimated_time": "2 hours"
}`

// Planner produces the project plan that drives the coding stage.
type Planner struct {
	client llm.Client
	logger *zap.Logger
}

// NewPlanner creates a Planner.
func NewPlanner(client llm.Client, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{client: client, logger: logger}
}

// CreatePlan asks the provider for a development plan. A structurally
// invalid or malformed result falls back to a minimal deterministic
// plan; a deadline expiry propagates as an error because planning
// timeouts are fatal to the run.
func (a *Planner) CreatePlan(ctx context.Context, goal, name string, techStack []string) (*Plan, error) {
	stack := "Python (Default)"
	if len(techStack) > 0 {
		stack = strings.Join(techStack, ", ")
	}

	prompt := fmt.Sprintf(`PROJECT NAME: %s
PROJECT GOAL: %s
PREFERRED TECH STACK: %s

Create a complete development plan with:

1. TASKS: List of specific, actionable tasks in correct order
2. FILES: Complete file structure with descriptions. Ensure 'language' matches the tech stack.
3. DEPENDENCIES: Packages needed for the chosen stack.
4. TEST_FILES: Test files to create.
5. ESTIMATED_TIME: Realistic time estimate

Focus on main functionality first, then error handling and testing.`, name, goal, stack)

	var plan Plan
	err := a.client.GenerateStructured(ctx, llm.Request{
		System:      plannerSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.1,
		MaxTokens:   4000,
	}, &plan)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		a.logger.Warn("planning call failed, using fallback plan", zap.Error(err))
		return FallbackPlan(name, goal), nil
	}

	if !plan.Valid() {
		a.logger.Warn("invalid or empty plan from provider, using fallback",
			zap.String("plan_error", plan.Error),
			zap.Int("files", len(plan.Files)))
		return FallbackPlan(name, goal), nil
	}

	plan.ProjectName = name
	plan.ProjectGoal = goal

	a.logger.Info("created plan",
		zap.Int("tasks", len(plan.Tasks)),
		zap.Int("files", len(plan.Files)))
	return &plan, nil
}

// FallbackPlan is the minimal deterministic plan used when the
// provider produces unusable output: one main file, one documentation
// file, no dependencies.
func FallbackPlan(name, goal string) *Plan {
	return &Plan{
		ProjectName: name,
		ProjectGoal: goal,
		Tasks: []string{
			"Create project structure",
			"Write main application file",
			"Add basic functionality",
			"Create README documentation",
		},
		Files: []FileSpec{
			{Path: "main.py", Description: "Main application file", Language: "python"},
			{Path: "README.md", Description: "Project documentation", Language: "markdown"},
		},
		Dependencies:  []string{},
		TestFiles:     []string{},
		EstimatedTime: "1 hour",
	}
}
