package agents

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/lang"
	"github.com/fyrsmithlabs/craftd/internal/llm"
)

const saboteurSystemPrompt = `You are a Malicious Senior Software Engineer.
Your goal is to take perfectly working code and inject ONE SUBTLE, LOGICAL BUG for a developer challenge.

RULES:
1. Only inject ONE bug per file.
2. The bug must be logical (e.g., off-by-one, wrong sign, boundary condition, incorrect sorting logic).
3. Do NOT make syntax errors. The code must compile/run.
4. The bug should be hard to spot with just a quick glance.
5. Do not change the function signatures or imports.

OUTPUT_FORMAT (JSON):
{
    "sabotaged_code": "The full code with the bug",
    "mission_hint": "A cryptic, cyberpunk-style hint about the system failure",
    "intel": "Technical description of the bug for system logs"
}`

// ErrEmptySabotage indicates the saboteur returned no code.
var ErrEmptySabotage = errors.New("saboteur returned empty code")

// Saboteur injects a subtle bug into working code for dojo challenges.
type Saboteur struct {
	client llm.Client
	logger *zap.Logger
}

// NewSaboteur creates a Saboteur.
func NewSaboteur(client llm.Client, logger *zap.Logger) *Saboteur {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saboteur{client: client, logger: logger}
}

// Sabotage returns a buggy variant of code plus hint and intel text.
func (a *Saboteur) Sabotage(ctx context.Context, code, path string, language lang.Language) (*SabotageResult, error) {
	prompt := fmt.Sprintf(`ORIGINAL_CODE (%s):
%s

TASK:
Inject a subtle, realistic logic bug that will break a unit test but look correct to a junior developer.
Return the JSON structure with sabotaged_code, mission_hint, and intel.`, language, code)

	var result SabotageResult
	err := a.client.GenerateStructured(ctx, llm.Request{
		System:      saboteurSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.4,
		MaxTokens:   3000,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("sabotage %s: %w", path, err)
	}
	if result.SabotagedCode == "" {
		return nil, ErrEmptySabotage
	}

	a.logger.Info("sabotaged file for challenge", zap.String("path", path))
	return &result, nil
}
