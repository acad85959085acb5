// Package analyzers implements the fixed analyzer family:
// Structure, Complexity, History, Weakness, CI/QM, Hotspots, Architecture,
// and DocCodeSync, each satisfying registry.Analyzer.
package analyzers

import (
	"go/ast"
	"go/parser"
	"go/token"
)

// Measurement is what a language-specific code measurer produces for one
// file's content.
type Measurement struct {
	Complexity    float64
	FunctionCount int
	Maintainability float64
}

// Measurer computes Measurement for one file's source text. It is a
// pluggable seam so richer per-language backends can be substituted later
// without touching the Complexity analyzer itself; only the Go measurer
// ships by default.
type Measurer interface {
	Measure(content []byte, language string) (Measurement, bool)
}

// GoASTMeasurer measures Go source using only go/parser and go/ast: cyclomatic
// complexity is counted as 1 plus one per branching construct per function,
// summed across the file; maintainability is a simple index in [0,100] over
// the average complexity per function.
type GoASTMeasurer struct{}

// Measure implements Measurer. It returns ok=false for non-Go content or
// content that fails to parse; the Complexity analyzer then records a Go
// file's complexity as 0 and emits an Issue for it.
func (GoASTMeasurer) Measure(content []byte, language string) (Measurement, bool) {
	if language != "go" {
		return Measurement{}, false
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", content, parser.AllErrors)
	if err != nil {
		return Measurement{}, false
	}

	var totalComplexity float64
	funcCount := 0

	ast.Inspect(file, func(n ast.Node) bool {
		fn, ok := n.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			return true
		}
		funcCount++
		totalComplexity += float64(cyclomaticComplexity(fn.Body))
		return true
	})

	m := Measurement{
		Complexity:    totalComplexity,
		FunctionCount: funcCount,
	}
	m.Maintainability = maintainabilityIndex(m.Complexity, funcCount)
	return m, true
}

// cyclomaticComplexity counts 1 plus one per decision point within body.
func cyclomaticComplexity(body ast.Node) int {
	complexity := 1
	ast.Inspect(body, func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.IfStmt:
			complexity++
		case *ast.ForStmt:
			complexity++
		case *ast.RangeStmt:
			complexity++
		case *ast.CaseClause:
			if s.List != nil {
				complexity++
			}
		case *ast.CommClause:
			complexity++
		case *ast.BinaryExpr:
			if s.Op == token.LAND || s.Op == token.LOR {
				complexity++
			}
		}
		return true
	})
	return complexity
}

// maintainabilityIndex is a simplified, bounded analogue of the classic
// maintainability index: it decays toward 0 as per-function complexity
// grows, and saturates at 100 for trivial files.
func maintainabilityIndex(totalComplexity float64, funcCount int) float64 {
	if funcCount == 0 {
		return 100
	}
	avg := totalComplexity / float64(funcCount)
	score := 100 - (avg-1)*8
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
