package agents

// FileSpec is one plan-produced file to generate.
type FileSpec struct {
	Path        string `json:"path"`
	Description string `json:"description"`
	Language    string `json:"language"`
}

// Plan is the planner's structured output.
type Plan struct {
	ProjectName   string     `json:"project_name"`
	ProjectGoal   string     `json:"project_goal"`
	Tasks         []string   `json:"tasks"`
	Files         []FileSpec `json:"files"`
	Dependencies  []string   `json:"dependencies"`
	TestFiles     []string   `json:"test_files"`
	EstimatedTime string     `json:"estimated_time"`

	// Error carries the provider's own malformed-output marker. A
	// plan with Error set is treated as invalid.
	Error string `json:"error,omitempty"`
}

// Valid reports whether the plan is structurally usable.
func (p *Plan) Valid() bool {
	return p != nil && p.Error == "" && len(p.Files) > 0
}

// Violation is one enforcement finding.
type Violation struct {
	Rule  string `json:"rule"`
	Issue string `json:"issue"`
	Fix   string `json:"fix"`
}

// EnforcementReport is the enforcer's verdict on a generated file.
type EnforcementReport struct {
	Compliant  bool        `json:"compliant"`
	Score      int         `json:"score"`
	Violations []Violation `json:"violations"`
	Feedback   string      `json:"feedback"`
}

// SabotageResult is the saboteur's output for a dojo challenge.
type SabotageResult struct {
	SabotagedCode string `json:"sabotaged_code"`
	Hint          string `json:"mission_hint"`
	Intel         string `json:"intel"`
}

// Component is one architectural unit in an analysis report.
type Component struct {
	Name    string   `json:"name"`
	Purpose string   `json:"purpose"`
	Files   []string `json:"files"`
}

// DependencyEdge is one component-to-component link.
type DependencyEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// DebtItem is one technical-debt finding.
type DebtItem struct {
	Issue    string `json:"issue"`
	Severity string `json:"severity"`
	Location string `json:"location"`
}

// Suggestion is one refactoring recommendation.
type Suggestion struct {
	Target     string `json:"target"`
	Suggestion string `json:"suggestion"`
	Benefit    string `json:"benefit"`
}

// AnalysisReport is the analyzer's structured architecture report.
type AnalysisReport struct {
	ArchitectureSummary    string           `json:"architecture_summary"`
	Components             []Component      `json:"components"`
	Dependencies           []DependencyEdge `json:"dependencies"`
	MermaidGraph           string           `json:"mermaid_graph"`
	TechnicalDebt          []DebtItem       `json:"technical_debt"`
	RefactoringSuggestions []Suggestion     `json:"refactoring_suggestions"`
}
