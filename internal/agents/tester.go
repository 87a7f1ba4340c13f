package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/lang"
	"github.com/fyrsmithlabs/craftd/internal/llm"
)

const testerSystemPrompt = `You are a Senior QA Engineer.
Write a self-contained test file for the code you are given.

RULES:
1. The test file must be directly runnable (python file, node script, etc.)
2. Cover the main behaviors and at least one edge case
3. Exit with a non-zero status when any assertion fails
4. Import the module under test by its file name
5. Do not require extra test frameworks unless the language demands one

Return ONLY the test code, no explanations, no markdown blocks.`

// Tester generates test artifacts for generated source files.
type Tester struct {
	client llm.Client
	logger *zap.Logger
}

// NewTester creates a Tester.
func NewTester(client llm.Client, logger *zap.Logger) *Tester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tester{client: client, logger: logger}
}

// CreateTests generates a runnable test artifact for the code at path.
func (a *Tester) CreateTests(ctx context.Context, code, path string, language lang.Language) (string, error) {
	prompt := fmt.Sprintf(`FILE UNDER TEST: %s
LANGUAGE: %s

CODE:
%s

Write a complete, runnable test file for this code now:`, path, language, code)

	testCode, err := a.client.Generate(ctx, llm.Request{
		System:      testerSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.2,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", fmt.Errorf("create tests for %s: %w", path, err)
	}

	testCode = llm.StripFences(testCode)
	a.logger.Debug("generated test artifact",
		zap.String("source", path),
		zap.Int("chars", len(testCode)))
	return testCode, nil
}
