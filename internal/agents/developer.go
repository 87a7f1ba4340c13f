package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/llm"
)

const developerSystemPrompt = `You are a Senior Full-Stack Developer.
Write clean, production-ready, well-documented code.

RULES:
1. Write complete, runnable code
2. Include proper imports
3. Add error handling
4. Follow the language's standard style conventions
5. Add docstrings and comments
6. Make it testable

Return ONLY the code, no explanations, no markdown blocks.`

// Developer generates the code for one file specification.
type Developer struct {
	client llm.Client
	logger *zap.Logger
}

// NewDeveloper creates a Developer.
func NewDeveloper(client llm.Client, logger *zap.Logger) *Developer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Developer{client: client, logger: logger}
}

// WriteFile generates code for spec within the plan's context.
// feedback, when non-empty, carries enforcement violations from a
// prior pass and requests a compliant regeneration.
func (a *Developer) WriteFile(ctx context.Context, spec FileSpec, plan *Plan, feedback string) (string, error) {
	prompt := fmt.Sprintf(`FILE TO CREATE: %s
FILE DESCRIPTION: %s
PROGRAMMING LANGUAGE: %s

PROJECT CONTEXT:
- Name: %s
- Goal: %s

REQUIREMENTS:
1. Create a complete, functional file
2. Handle edge cases and errors
3. Include necessary imports
4. Add type hints if applicable
5. Include a main guard if appropriate

Write the COMPLETE code now:`,
		spec.Path, spec.Description, spec.Language, plan.ProjectName, plan.ProjectGoal)

	if feedback != "" {
		prompt += fmt.Sprintf(`

A code review found the previous version non-compliant. Address this
feedback and regenerate the whole file:
%s`, feedback)
	}

	code, err := a.client.Generate(ctx, llm.Request{
		System:      developerSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.2,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", spec.Path, err)
	}

	code = llm.StripFences(code)
	a.logger.Debug("generated file",
		zap.String("path", spec.Path),
		zap.Int("chars", len(code)))
	return code, nil
}
