package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/lang"
	"github.com/fyrsmithlabs/craftd/internal/llm"
)

const fixerSystemPrompt = `You are a Senior Debugging Engineer.
Fix bugs and errors in code based on test failures.

RULES:
1. Understand the error first
2. Fix the root cause, not symptoms
3. Maintain code quality
4. Don't break existing functionality
5. Add comments explaining the fix

Return ONLY the fixed code, no explanations.`

// maxCodeChars caps how much source is sent in a fix prompt.
const maxCodeChars = 3000

// Fixer repairs code based on verifier diagnostics.
type Fixer struct {
	client llm.Client
	logger *zap.Logger
}

// NewFixer creates a Fixer.
func NewFixer(client llm.Client, logger *zap.Logger) *Fixer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fixer{client: client, logger: logger}
}

// FixCode asks the provider to repair code given the failure
// diagnostic from the verifier.
func (a *Fixer) FixCode(ctx context.Context, code, errorMessage, path string, language lang.Language) (string, error) {
	truncated := code
	if len(truncated) > maxCodeChars {
		truncated = truncated[:maxCodeChars]
	}

	prompt := fmt.Sprintf(`FIX CODE FOR FILE: %s
LANGUAGE: %s

ORIGINAL CODE:
%s

ERROR MESSAGE:
%s

Fix the code to resolve this error.
Maintain the original functionality.
Add comments to explain your fix.`, path, language, truncated, errorMessage)

	fixed, err := a.client.Generate(ctx, llm.Request{
		System:      fixerSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.1,
		MaxTokens:   3000,
	})
	if err != nil {
		return "", fmt.Errorf("fix %s: %w", path, err)
	}

	fixed = llm.StripFences(fixed)
	a.logger.Debug("generated fix", zap.String("path", path), zap.Int("chars", len(fixed)))
	return fixed, nil
}
