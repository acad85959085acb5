package model

// LanguageTag identifies the programming language of a source file.
type LanguageTag string

const (
	LangUnknown    LanguageTag = "unknown"
	LangGo         LanguageTag = "go"
	LangPython     LanguageTag = "python"
	LangJavaScript LanguageTag = "javascript"
	LangTypeScript LanguageTag = "typescript"
	LangJava       LanguageTag = "java"
	LangCSharp     LanguageTag = "csharp"
	LangRust       LanguageTag = "rust"
	LangC          LanguageTag = "c"
	LangCPP        LanguageTag = "cpp"
	LangRuby       LanguageTag = "ruby"
)

// Layer is one of the four architectural strata governing allowed import
// directions.
type Layer string

const (
	LayerPresentation  Layer = "Presentation"
	LayerBusiness      Layer = "Business"
	LayerData          Layer = "Data"
	LayerInfrastructure Layer = "Infrastructure"
	LayerUnassigned    Layer = ""
)

// FileFacts holds every per-file measurement the analyzer family produces.
type FileFacts struct {
	Path               string      `json:"path"`
	Language           LanguageTag `json:"language"`
	Complexity         float64     `json:"complexity"`          // cyclomatic, 0..1000
	Maintainability    float64     `json:"maintainability"`     // 0..100
	FunctionCount      int         `json:"function_count"`
	TodoMarkerCount    int         `json:"todo_marker_count"`
	Churn              int         `json:"churn"`                // commits touching file
	TestCoverageRatio  *float64    `json:"test_coverage_ratio,omitempty"`
	Contributors       int         `json:"contributors"`
	LastCommitUnix     int64       `json:"last_commit_unix"`
	LOC                int         `json:"loc"`
	Layer              Layer       `json:"layer"`
	ParseFailed        bool        `json:"parse_failed"`
}

// ModuleFacts aggregates the files under one module path.
type ModuleFacts struct {
	Path           string   `json:"path"`
	Files          []string `json:"files"`
	MeanComplexity float64  `json:"mean_complexity"`
	TotalLOC       int      `json:"total_loc"`
	TotalChurn     int      `json:"total_churn"`
	Layer          Layer    `json:"layer"`
}
