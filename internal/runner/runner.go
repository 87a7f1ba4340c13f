// Package runner executes generated test artifacts as subprocesses
// confined to their project working directory, and performs
// best-effort dependency installation.
//
// Test execution is the pipeline's external verifier: it returns
// pass/fail plus diagnostic output, never an exception for a failing
// test. The only sandboxing is working-directory confinement.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/lang"
)

// ErrUnsupportedLanguage indicates no test tooling is defined for the
// language; the caller should skip execution.
var ErrUnsupportedLanguage = errors.New("no test tooling for language")

// Result is the verifier's outcome for one test run.
type Result struct {
	Success  bool
	Output   string
	Error    string
	ExitCode int
}

// Verifier runs test artifacts and installs dependencies.
type Verifier interface {
	// RunTest executes the test artifact at testPath (relative to
	// workDir) with the language's tooling. A timeout or non-zero exit
	// is a failed Result, not an error; error is reserved for
	// conditions where no run happened at all.
	RunTest(ctx context.Context, testPath, workDir string, language lang.Language) (Result, error)

	// InstallDependencies installs packages with the language's
	// package manager. Failures are returned but callers treat them
	// as non-fatal.
	InstallDependencies(ctx context.Context, workDir string, packages []string, language lang.Language) error
}

type subprocessVerifier struct {
	logger *zap.Logger

	// commandFor is a test seam; defaults to Language.TestCommand.
	commandFor func(l lang.Language, testPath string) ([]string, bool)
}

// New creates a subprocess-backed Verifier.
func New(logger *zap.Logger) Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &subprocessVerifier{
		logger:     logger,
		commandFor: func(l lang.Language, testPath string) ([]string, bool) { return l.TestCommand(testPath) },
	}
}

func (v *subprocessVerifier) RunTest(ctx context.Context, testPath, workDir string, language lang.Language) (Result, error) {
	argv, ok := v.commandFor(language, testPath)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workDir

	output, err := cmd.CombinedOutput()
	result := Result{
		Success: err == nil,
		Output:  strings.TrimSpace(string(output)),
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.Success = false
		result.Error = "test run timed out"
		result.ExitCode = -1
		v.logger.Warn("test run timed out",
			zap.String("test", testPath),
			zap.String("dir", workDir))
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			result.Error = result.Output
			if result.Error == "" {
				result.Error = err.Error()
			}
		} else {
			// Tooling missing or not startable; no run happened.
			return Result{}, fmt.Errorf("start test command %q: %w", argv[0], err)
		}
	}

	v.logger.Debug("test run finished",
		zap.String("test", testPath),
		zap.Bool("success", result.Success),
		zap.Int("exit_code", result.ExitCode))
	return result, nil
}

func (v *subprocessVerifier) InstallDependencies(ctx context.Context, workDir string, packages []string, language lang.Language) error {
	argv, ok := language.InstallCommand(packages)
	if !ok {
		v.logger.Warn("dependency installation not supported",
			zap.String("language", language.String()))
		return nil
	}

	// npm needs a package.json to install into.
	if language == lang.JavaScript || language == lang.TypeScript {
		if _, err := os.Stat(filepath.Join(workDir, "package.json")); os.IsNotExist(err) {
			init := exec.CommandContext(ctx, "npm", "init", "-y")
			init.Dir = workDir
			if out, err := init.CombinedOutput(); err != nil {
				return fmt.Errorf("npm init: %w: %s", err, strings.TrimSpace(string(out)))
			}
		}
	}

	v.logger.Info("installing dependencies",
		zap.Strings("packages", packages),
		zap.String("language", language.String()))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("install dependencies: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
