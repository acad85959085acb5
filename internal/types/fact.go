// Package types holds the small set of shared value types that every
// analysis package depends on, kept separate to avoid import cycles between
// internal/model, internal/analyzers, and internal/quality.
package types

import (
	"fmt"
	"strings"

	"github.com/google/mangle/ast"
)

// Fact is a single logical atom emitted by an analyzer: predicate(args...).
// It is the unit the (out-of-scope) RDF serializer walks to produce a
// semantic export of everything the pipeline computed. Downstream transforms
// may convert a Fact to a google/mangle ast.Atom via ToAtom.
type Fact struct {
	Predicate string
	Args      []interface{}
}

// MangleAtom marks a string argument as an already-atomized name constant
// (conventionally prefixed with "/") rather than plain string data.
type MangleAtom string

func (a MangleAtom) String() string { return string(a) }

// String renders a Fact in Mangle-like textual form, predicate(arg1, arg2).
// Used for debug logging and golden-file tests; it is not itself the RDF
// export format.
func (f Fact) String() string {
	s := f.Predicate + "("
	for i, a := range f.Args {
		if i > 0 {
			s += ", "
		}
		switch v := a.(type) {
		case MangleAtom:
			s += string(v)
		case string:
			s += fmt.Sprintf("%q", v)
		case bool:
			if v {
				s += "/true"
			} else {
				s += "/false"
			}
		default:
			s += fmt.Sprintf("%v", v)
		}
	}
	return s + ")"
}

// ToAtom converts a Fact into a google/mangle ast.Atom, the shape the
// (out-of-scope) semantic exporter hands to a Mangle evaluation engine or
// factstore. Floats outside [0,1] truncate to an integer; floats within
// [0,1] scale to a 0-100 integer, since Mangle's comparison operators only
// work over integers.
func (f Fact) ToAtom() (ast.Atom, error) {
	terms := make([]ast.BaseTerm, 0, len(f.Args))
	for _, a := range f.Args {
		switch v := a.(type) {
		case MangleAtom:
			c, err := ast.Name(string(v))
			if err != nil {
				return ast.Atom{}, err
			}
			terms = append(terms, c)
		case string:
			if strings.HasPrefix(v, "/") {
				c, err := ast.Name(v)
				if err != nil {
					return ast.Atom{}, err
				}
				terms = append(terms, c)
				continue
			}
			terms = append(terms, ast.String(v))
		case int:
			terms = append(terms, ast.Number(int64(v)))
		case int64:
			terms = append(terms, ast.Number(v))
		case float64:
			if v >= 0.0 && v <= 1.0 {
				terms = append(terms, ast.Number(int64(v*100)))
			} else {
				terms = append(terms, ast.Number(int64(v)))
			}
		case bool:
			if v {
				terms = append(terms, ast.TrueConstant)
			} else {
				terms = append(terms, ast.FalseConstant)
			}
		default:
			terms = append(terms, ast.String(fmt.Sprintf("%v", v)))
		}
	}
	return ast.NewAtom(f.Predicate, terms...), nil
}
