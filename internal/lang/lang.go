// Package lang classifies generated files by programming language.
//
// The pipeline branches on a language tag in several places: test
// artifact naming, test tooling selection, dependency installation and
// the documentation-file predicate. This package owns those
// conventions behind a closed enum so new languages are added in one
// place instead of scattered string comparisons.
package lang

import (
	"path/filepath"
	"strings"
)

// Language identifies a supported programming language.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Go         Language = "go"
	Markdown   Language = "markdown"

	// Unknown is the explicit default for unrecognized tags. Files
	// tagged Unknown still get test artifacts named like Python, but
	// the runner refuses to execute them.
	Unknown Language = "unknown"
)

// Parse maps a free-form language tag to a Language. Matching is
// case-insensitive and tolerates the common aliases LLM plans emit.
func Parse(tag string) Language {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "python", "py", "python3":
		return Python
	case "javascript", "js", "node", "nodejs":
		return JavaScript
	case "typescript", "ts":
		return TypeScript
	case "go", "golang":
		return Go
	case "markdown", "md":
		return Markdown
	default:
		return Unknown
	}
}

// IsDocumentation reports whether files of this language are
// documentation rather than code. Documentation files are never
// tested, fixed or sabotaged.
func (l Language) IsDocumentation() bool {
	return l == Markdown
}

// TestFileName derives the test artifact path for a source path. The
// convention is applied to the base name so artifacts stay in the same
// directory as their source:
//
//	python/unknown: pkg/app.py  -> pkg/test_app.py
//	javascript/ts:  src/util.js -> src/util.test.js
//	go:             mod/sum.go  -> mod/sum_test.go
//
// Markdown files have no test artifact; TestFileName returns "".
func (l Language) TestFileName(sourcePath string) string {
	if l.IsDocumentation() {
		return ""
	}

	dir := filepath.Dir(sourcePath)
	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	var name string
	switch l {
	case JavaScript, TypeScript:
		name = stem + ".test" + ext
	case Go:
		name = stem + "_test" + ext
	default:
		name = "test_" + base
	}

	if dir == "." {
		return name
	}
	return filepath.Join(dir, name)
}

// IsTestFile reports whether path already names a test artifact under
// any supported convention. Such files are skipped by the testing
// stage and excluded from challenge selection.
func IsTestFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, "test_") ||
		strings.Contains(base, ".test.") ||
		strings.HasSuffix(base, "_test.go")
}

// TestCommand returns the command line that executes the test artifact
// at testPath, relative to the project working directory. ok is false
// when no tooling is defined for the language; the caller should skip
// execution rather than guess.
func (l Language) TestCommand(testPath string) (cmd []string, ok bool) {
	switch l {
	case Python:
		return []string{"python", testPath}, true
	case JavaScript:
		return []string{"node", testPath}, true
	case TypeScript:
		return []string{"npx", "tsx", testPath}, true
	case Go:
		return []string{"go", "test", "./..."}, true
	default:
		return nil, false
	}
}

// InstallCommand returns the dependency-install command for the
// language, or ok=false when installation is unsupported.
func (l Language) InstallCommand(packages []string) (cmd []string, ok bool) {
	if len(packages) == 0 {
		return nil, false
	}
	switch l {
	case Python:
		return append([]string{"pip", "install"}, packages...), true
	case JavaScript, TypeScript:
		return append([]string{"npm", "install"}, packages...), true
	default:
		return nil, false
	}
}

// FromPath infers the language from a file extension. Used where no
// plan context survives, such as verifying a recovered project.
func FromPath(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return Python
	case ".js", ".mjs", ".cjs":
		return JavaScript
	case ".ts":
		return TypeScript
	case ".go":
		return Go
	case ".md", ".markdown":
		return Markdown
	default:
		return Unknown
	}
}

// String implements fmt.Stringer.
func (l Language) String() string { return string(l) }
