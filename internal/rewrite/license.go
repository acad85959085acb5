package rewrite

import (
	"sort"
	"strings"
)

// parseLicense builds a Term from an SPDX-ish boolean license expression:
// IDENT | TRUE | FALSE | "(" expr ")" | expr AND expr | expr OR expr.
// AND binds tighter than OR; both are left-associative in source but the
// resulting Term flattens same-operator chains (see license rules).
func parseLicense(expr string) Term {
	toks := tokenizeLicense(expr)
	p := &licenseParser{toks: toks}
	return p.parseOr()
}

func tokenizeLicense(expr string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range expr {
		switch {
		case r == '(' || r == ')':
			flush()
			toks = append(toks, string(r))
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

type licenseParser struct {
	toks []string
	pos  int
}

func (p *licenseParser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *licenseParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *licenseParser) parseOr() Term {
	left := p.parseAnd()
	for strings.EqualFold(p.peek(), "OR") {
		p.next()
		right := p.parseAnd()
		left = node("OR", left, right)
	}
	return left
}

func (p *licenseParser) parseAnd() Term {
	left := p.parseAtom()
	for strings.EqualFold(p.peek(), "AND") {
		p.next()
		right := p.parseAtom()
		left = node("AND", left, right)
	}
	return left
}

func (p *licenseParser) parseAtom() Term {
	tok := p.next()
	if tok == "(" {
		inner := p.parseOr()
		if p.peek() == ")" {
			p.next()
		}
		return inner
	}
	switch strings.ToUpper(tok) {
	case "TRUE":
		return leaf("TRUE")
	case "FALSE":
		return leaf("FALSE")
	default:
		return leaf(tok)
	}
}

// renderLicense renders a Term back to canonical SPDX-ish text. Commutative
// operators have already been sorted and flattened by rewriteLicense.
func renderLicense(t Term) string {
	if t.isLeaf() {
		return t.Value
	}
	parts := make([]string, len(t.Children))
	for i, c := range t.Children {
		s := renderLicense(c)
		if !c.isLeaf() && c.Op != t.Op {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	sep := " " + t.Op + " "
	return strings.Join(parts, sep)
}

// rewriteLicense applies the license rule family to a fixpoint:
// idempotence, identity, annihilation, flattening, commutative reordering,
// and absorption. Returns the normal form and the number of rewrite steps
// taken (for the step-budget accounting in engine.go).
func rewriteLicense(t Term, budget int) (Term, int, bool) {
	steps := 0
	for {
		if steps >= budget {
			return t, steps, false
		}
		next, changed := licenseStep(t)
		if !changed {
			return t, steps, true
		}
		t = next
		steps++
	}
}

func licenseStep(t Term) (Term, bool) {
	if t.isLeaf() {
		return t, false
	}

	// Recurse first (innermost rewriting), tracking whether any child changed.
	childChanged := false
	newChildren := make([]Term, len(t.Children))
	for i, c := range t.Children {
		nc, ch := licenseStep(c)
		newChildren[i] = nc
		if ch {
			childChanged = true
		}
	}
	t = Term{Op: t.Op, Children: newChildren}
	if childChanged {
		return t, true
	}

	// Flatten associative chains: (A op B) op C -> op(A,B,C).
	var flat []Term
	flattened := false
	for _, c := range t.Children {
		if !c.isLeaf() && c.Op == t.Op {
			flat = append(flat, c.Children...)
			flattened = true
		} else {
			flat = append(flat, c)
		}
	}
	if flattened {
		return Term{Op: t.Op, Children: flat}, true
	}

	// Identity / annihilation / idempotence over the flattened arg list.
	if t.Op == "AND" {
		var kept []Term
		for _, c := range t.Children {
			if c.isLeaf() && c.Value == "FALSE" {
				return leaf("FALSE"), true
			}
			if c.isLeaf() && c.Value == "TRUE" {
				continue
			}
			kept = append(kept, c)
		}
		if len(kept) != len(t.Children) {
			if len(kept) == 0 {
				return leaf("TRUE"), true
			}
			if len(kept) == 1 {
				return kept[0], true
			}
			return Term{Op: "AND", Children: kept}, true
		}
	}
	if t.Op == "OR" {
		var kept []Term
		for _, c := range t.Children {
			if c.isLeaf() && c.Value == "TRUE" {
				return leaf("TRUE"), true
			}
			if c.isLeaf() && c.Value == "FALSE" {
				continue
			}
			kept = append(kept, c)
		}
		if len(kept) != len(t.Children) {
			if len(kept) == 0 {
				return leaf("FALSE"), true
			}
			if len(kept) == 1 {
				return kept[0], true
			}
			return Term{Op: "OR", Children: kept}, true
		}
	}

	// Idempotence: duplicate equal args collapse to one.
	if deduped, ok := dedupe(t); ok {
		return deduped, true
	}

	// Absorption: X OR (X AND Y...) -> X, and its dual.
	if t.Op == "OR" || t.Op == "AND" {
		other := "AND"
		if t.Op == "AND" {
			other = "OR"
		}
		for i, x := range t.Children {
			for j, y := range t.Children {
				if i == j || y.isLeaf() || y.Op != other {
					continue
				}
				for _, yc := range y.Children {
					if yc.equal(x) {
						rest := removeAt(t.Children, j)
						if len(rest) == 1 {
							return rest[0], true
						}
						return Term{Op: t.Op, Children: rest}, true
					}
				}
			}
		}
	}

	// Canonical commutative reordering: lexicographic by rendered text.
	if t.Op == "AND" || t.Op == "OR" {
		sorted := make([]Term, len(t.Children))
		copy(sorted, t.Children)
		sort.SliceStable(sorted, func(i, j int) bool {
			return renderLicense(sorted[i]) < renderLicense(sorted[j])
		})
		for i := range sorted {
			if !sorted[i].equal(t.Children[i]) {
				return Term{Op: t.Op, Children: sorted}, true
			}
		}
	}

	return t, false
}

func dedupe(t Term) (Term, bool) {
	if t.Op != "AND" && t.Op != "OR" {
		return t, false
	}
	var kept []Term
	for _, c := range t.Children {
		dup := false
		for _, k := range kept {
			if k.equal(c) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(t.Children) {
		return t, false
	}
	if len(kept) == 1 {
		return kept[0], true
	}
	return Term{Op: t.Op, Children: kept}, true
}

func removeAt(ts []Term, idx int) []Term {
	out := make([]Term, 0, len(ts)-1)
	for i, t := range ts {
		if i != idx {
			out = append(out, t)
		}
	}
	return out
}
