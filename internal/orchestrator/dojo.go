package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/lang"
	"github.com/fyrsmithlabs/craftd/internal/project"
)

// ChallengeInfo is what the caller sees when a challenge starts. The
// sabotaged file's original content stays server-side.
type ChallengeInfo struct {
	ProjectID string    `json:"project_id"`
	FilePath  string    `json:"file_path"`
	Hint      string    `json:"mission_hint"`
	Intel     string    `json:"intel"`
	StartedAt time.Time `json:"started_at"`
}

// VerifyResult is the outcome of a challenge verification attempt.
type VerifyResult struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// StartChallenge sabotages one randomly chosen source file of an
// existing project and records the challenge. Test artifacts and
// documentation are never targets. Any failure before the sabotaged
// code is written leaves the project untouched.
func (o *Orchestrator) StartChallenge(ctx context.Context, projectID string) (*ChallengeInfo, error) {
	p, err := o.GetProjectState(projectID)
	if err != nil {
		return nil, err
	}

	var eligible []string
	for _, path := range p.Files() {
		if lang.IsTestFile(path) || lang.FromPath(path).IsDocumentation() {
			continue
		}
		eligible = append(eligible, path)
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleFile
	}
	target := eligible[o.randIntn(len(eligible))]

	original := o.store.ReadFile(projectID, target)
	if original == "" {
		return nil, fmt.Errorf("challenge target %s is empty or unreadable", target)
	}

	sabCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.SabotageTimeout))
	defer cancel()
	result, err := o.agents.Saboteur.Sabotage(sabCtx, original, target, lang.FromPath(target))
	if err != nil {
		return nil, fmt.Errorf("sabotage %s: %w", target, err)
	}

	if err := o.store.WriteFile(projectID, target, result.SabotagedCode); err != nil {
		return nil, fmt.Errorf("writing sabotaged %s: %w", target, err)
	}

	challenge := &project.Challenge{
		ProjectID:       projectID,
		FilePath:        target,
		OriginalContent: original,
		Hint:            result.Hint,
		Intel:           result.Intel,
		StartedAt:       time.Now(),
	}
	o.registry.SetChallenge(challenge)
	o.metrics.Challenges.WithLabelValues("started").Inc()

	p.AddLog("dojo", "Challenge started", map[string]any{"file": target})
	o.logger.Info("challenge started",
		zap.String("project", projectID),
		zap.String("file", target))

	return &ChallengeInfo{
		ProjectID: projectID,
		FilePath:  target,
		Hint:      challenge.Hint,
		Intel:     challenge.Intel,
		StartedAt: challenge.StartedAt,
	}, nil
}

// VerifyChallenge judges the player's repair of the sabotaged file.
// An exact restoration (modulo surrounding whitespace) wins outright;
// otherwise the file's test artifact decides. A failed verification
// keeps the challenge active so the player can try again.
func (o *Orchestrator) VerifyChallenge(ctx context.Context, projectID string) (*VerifyResult, error) {
	challenge, err := o.registry.Challenge(projectID)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(challenge.StartedAt)

	current := o.store.ReadFile(projectID, challenge.FilePath)
	if strings.TrimSpace(current) == strings.TrimSpace(challenge.OriginalContent) {
		return o.challengeSolved(projectID, challenge, elapsed, "Original code restored"), nil
	}

	l := lang.FromPath(challenge.FilePath)
	testPath := l.TestFileName(challenge.FilePath)
	if testPath == "" || !o.store.FileExists(projectID, testPath) {
		return &VerifyResult{
			Success:  false,
			Message:  "Code differs from the original and no test artifact exists to judge it",
			Duration: elapsed,
		}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.TestRunTimeout))
	defer cancel()
	result, err := o.verifier.RunTest(runCtx, testPath, o.store.ProjectDir(projectID), l)
	if err != nil {
		return nil, fmt.Errorf("verifying %s: %w", challenge.FilePath, err)
	}
	if !result.Success {
		o.metrics.Challenges.WithLabelValues("failed_attempt").Inc()
		return &VerifyResult{
			Success:  false,
			Message:  "Tests still failing",
			Error:    result.Error + "\n" + result.Output,
			Duration: elapsed,
		}, nil
	}
	return o.challengeSolved(projectID, challenge, elapsed, "Tests pass"), nil
}

func (o *Orchestrator) challengeSolved(projectID string, challenge *project.Challenge, elapsed time.Duration, how string) *VerifyResult {
	o.registry.ClearChallenge(projectID)
	o.metrics.Challenges.WithLabelValues("solved").Inc()
	if p, err := o.registry.Get(projectID); err == nil {
		p.AddLog("dojo", "Challenge solved", map[string]any{
			"file":     challenge.FilePath,
			"duration": elapsed.String(),
		})
	}
	o.logger.Info("challenge solved",
		zap.String("project", projectID),
		zap.String("file", challenge.FilePath),
		zap.Duration("elapsed", elapsed))
	return &VerifyResult{
		Success:  true,
		Message:  how,
		Duration: elapsed,
	}
}
