package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/llm"
)

const enforcerSystemPrompt = `You are a Senior Architect and Lead Code Reviewer.
Your task is to enforce strict compliance with a provided STYLE GUIDE and ARCHITECTURAL SPEC.

CRITERIA:
1. Does the code follow the naming conventions (CamelCase, snake_case, etc.)?
2. Are there forbidden libraries or patterns?
3. Is the code sufficiently commented (or clean enough to not need them)?
4. Does it match the architectural goals?

OUTPUT FORMAT (JSON):
{
    "compliant": true,
    "score": 95,
    "violations": [
        {"rule": "Rule name", "issue": "Description", "fix": "How to fix"}
    ],
    "feedback": "Overall summary for the developer"
}`

// Enforcer reviews generated code against style and architecture
// constraints.
type Enforcer struct {
	client llm.Client
	logger *zap.Logger
}

// NewEnforcer creates an Enforcer.
func NewEnforcer(client llm.Client, logger *zap.Logger) *Enforcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enforcer{client: client, logger: logger}
}

// Enforce reviews code against the optional style guide and spec
// constraints. A failed review call is bypassed with a compliant
// report so enforcement never blocks the pipeline, except deadline
// expiry which the caller handles.
func (a *Enforcer) Enforce(ctx context.Context, code, path, styleGuide, spec string) (*EnforcementReport, error) {
	if styleGuide == "" {
		styleGuide = "Standard Best Practices"
	}
	if spec == "" {
		spec = "Maintainable, clean code"
	}

	prompt := fmt.Sprintf(`FILE: %s
CODE:
%s

CONSTRAINTS:
- STYLE_GUIDE: %s
- ARCHITECTURAL_SPEC: %s

Review this code. If 'compliant' is false, the developer will be forced to regenerate the file.`,
		path, code, styleGuide, spec)

	var report EnforcementReport
	err := a.client.GenerateStructured(ctx, llm.Request{
		System:      enforcerSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.1,
		MaxTokens:   2000,
	}, &report)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Warn("enforcement review failed, bypassing", zap.String("path", path), zap.Error(err))
		return &EnforcementReport{
			Compliant: true,
			Score:     100,
			Feedback:  fmt.Sprintf("Review failed but bypassed: %v", err),
		}, nil
	}

	return &report, nil
}

// FeedbackSummary flattens a non-compliant report into regeneration
// feedback for the developer.
func (r *EnforcementReport) FeedbackSummary() string {
	summary := r.Feedback
	for _, v := range r.Violations {
		summary += fmt.Sprintf("\n- [%s] %s (fix: %s)", v.Rule, v.Issue, v.Fix)
	}
	return summary
}
