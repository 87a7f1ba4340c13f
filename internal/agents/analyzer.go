package agents

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/llm"
)

const analyzerSystemPrompt = `You are a Senior Systems Architect and Technical Auditor.
Your goal is to analyze existing codebases to understand their architecture,
identify technical debt, and suggest modernization patterns.

CRITICAL: Provide professional, objective, and deeply technical insights.
Return your analysis in a structured format (JSON).

Output Format:
{
    "architecture_summary": "High-level overview of the system design",
    "components": [
        {"name": "Component Name", "purpose": "What it does", "files": ["file1", "file2"]}
    ],
    "dependencies": [
        {"source": "Component A", "target": "Component B", "type": "import"}
    ],
    "mermaid_graph": "A complete Mermaid.js graph string visualizing the source/target links",
    "technical_debt": [
        {"issue": "Brief description", "severity": "High/Medium/Low", "location": "file:line"}
    ],
    "refactoring_suggestions": [
        {"target": "Component/File", "suggestion": "What to change", "benefit": "Why"}
    ]
}`

const snippetLimit = 500

// Analyzer deconstructs an existing codebase into an architecture
// report. Analysis is read-only: it never mutates project state.
type Analyzer struct {
	client llm.Client
	logger *zap.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(client llm.Client, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{client: client, logger: logger}
}

// Analyze combines a programmatic import scan with provider reasoning
// over file snippets.
func (a *Analyzer) Analyze(ctx context.Context, filesByPath map[string]string, name, goal string) (*AnalysisReport, error) {
	paths := make([]string, 0, len(filesByPath))
	for p := range filesByPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var summaries []string
	for _, path := range paths {
		content := filesByPath[path]
		snippet := content
		if len(snippet) > snippetLimit {
			snippet = snippet[:snippetLimit] + "..."
		}
		imports := ScanImports(path, content)
		summaries = append(summaries, fmt.Sprintf("FILE: %s\nIMPORTS: %s\nCONTENT SNIPPET:\n%s\n---",
			path, strings.Join(imports, ", "), snippet))
	}

	prompt := fmt.Sprintf(`PROJECT NAME: %s
CONTEXT: %s

CODEBASE FILES:
%s

TASK:
1. Deconstruct the architecture.
2. Identify internal component dependencies using the provided IMPORTS data.
3. Create a clean Mermaid.js graph string using top-down (TD) flow.

CRITICAL MERMAID RULES:
- Do NOT wrap the mermaid string in markdown code blocks.
- Return ONLY the graph definition string (e.g. "graph TD\n...").
- Use simple alphanumeric node IDs.
- Start with "graph TD".

4. Spot technical debt (anti-patterns, security risks, lack of abstraction).
5. Suggest modern refactoring paths.

Return ONLY valid JSON.`, name, goal, strings.Join(summaries, "\n"))

	var report AnalysisReport
	err := a.client.GenerateStructured(ctx, llm.Request{
		System:      analyzerSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.1,
		MaxTokens:   4000,
	}, &report)
	if err != nil {
		return nil, fmt.Errorf("analyze codebase: %w", err)
	}

	report.MermaidGraph = cleanMermaid(report.MermaidGraph)
	return &report, nil
}

// cleanMermaid strips markdown fencing the model may have added to the
// graph string despite instructions.
func cleanMermaid(graph string) string {
	graph = strings.TrimSpace(graph)
	graph = strings.TrimPrefix(graph, "```mermaid")
	graph = strings.ReplaceAll(graph, "```", "")
	return strings.TrimSpace(graph)
}

var (
	pythonImportRe = regexp.MustCompile(`(?m)^\s*(?:import\s+([\w.]+)|from\s+([\w.]+)\s+import)`)
	jsImportRe     = regexp.MustCompile(`(?m)(?:import\s+.*?from\s+['"]([^'"]+)['"]|require\(\s*['"]([^'"]+)['"]\s*\))`)
	goImportRe     = regexp.MustCompile(`(?m)^\s*(?:import\s+)?_?\s*"([^"]+)"`)
)

// ScanImports extracts import targets from source content, keyed off
// the file extension. Unknown languages yield an empty list; the
// provider still sees the content snippet.
func ScanImports(path, content string) []string {
	var matches [][]string
	switch {
	case strings.HasSuffix(path, ".py"):
		matches = pythonImportRe.FindAllStringSubmatch(content, -1)
	case strings.HasSuffix(path, ".js"), strings.HasSuffix(path, ".ts"):
		matches = jsImportRe.FindAllStringSubmatch(content, -1)
	case strings.HasSuffix(path, ".go"):
		matches = goImportRe.FindAllStringSubmatch(content, -1)
	default:
		return nil
	}

	seen := make(map[string]struct{})
	var imports []string
	for _, m := range matches {
		for _, group := range m[1:] {
			if group == "" {
				continue
			}
			if _, dup := seen[group]; dup {
				continue
			}
			seen[group] = struct{}{}
			imports = append(imports, group)
		}
	}
	sort.Strings(imports)
	return imports
}
