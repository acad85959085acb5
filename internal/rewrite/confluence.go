package rewrite

import (
	"fmt"

	"github.com/aperturehq/aperture/internal/apperrors"
)

// confluenceFixtures are representative overlapping-redex cases for each
// rule family: inputs where more than one rule could fire first. Local
// confluence requires every such fixture to rewrite to the same normal form
// regardless of which applicable rule is applied first. A fully general
// critical-pair enumeration over an unbounded term algebra is intractable at
// startup; this check instead verifies joinability on a fixed, curated set
// of critical pairs drawn from the rule definitions themselves (see
// DESIGN.md), which is the scope SelfCheck commits to.
var confluenceFixtures = []struct {
	kind Kind
	expr string
}{
	// Idempotence vs. flattening overlap: (A AND A) AND A.
	{KindLicenseExpr, "(MIT AND MIT) AND MIT"},
	// Annihilation vs. identity overlap in the same AND chain.
	{KindLicenseExpr, "MIT AND FALSE AND TRUE"},
	// Absorption vs. idempotence overlap.
	{KindLicenseExpr, "MIT OR (MIT AND Apache-2.0)"},
	// Commutative reordering applied regardless of starting order.
	{KindLicenseExpr, "Apache-2.0 OR MIT"},
	{KindLicenseExpr, "MIT OR Apache-2.0"},

	// Overlapping lower/upper bound tightening in either scan order.
	{KindVersionRange, ">=1.0.0 >=1.2.3 <2.0.0"},
	{KindVersionRange, "<2.0.0 >=1.2.3 >=1.0.0"},
	{KindVersionRange, ">=2.0.0 <1.0.0"},

	// Constant folding vs. identity-elimination overlap.
	{KindMetricExpr, "(2 + 3) * 1"},
	{KindMetricExpr, "1 * (2 + 3)"},
	{KindMetricExpr, "x + 0 - 0"},
}

// confluencePairs groups fixtures expected to converge to the same normal
// form; each pair holds two indices into confluenceFixtures. Built alongside confluenceFixtures
// so SelfCheck can assert joinability, not just successful termination.
var confluencePairs = [][2]int{
	{3, 4}, // "Apache-2.0 OR MIT" and "MIT OR Apache-2.0" must agree
	{5, 6}, // both orderings of the same three version bounds must agree
}

// SelfCheck runs the curated confluence fixtures through Normalize and
// verifies: (1) every fixture terminates within the budget, and (2) every
// declared pair converges to an identical normal form. It is meant to run
// once at process startup, not per-analysis.
func (n *Normalizer) SelfCheck() error {
	results := make([]string, len(confluenceFixtures))
	for i, f := range confluenceFixtures {
		out, err := n.Normalize(f.expr, f.kind)
		if err != nil {
			return fmt.Errorf("%w: fixture %q: %v", apperrors.ErrConfluenceSelfCheckFailed, f.expr, err)
		}
		results[i] = out
	}
	for _, pair := range confluencePairs {
		a, b := results[pair[0]], results[pair[1]]
		if a != b {
			return fmt.Errorf("%w: %q and %q diverged to %q vs %q",
				apperrors.ErrConfluenceSelfCheckFailed,
				confluenceFixtures[pair[0]].expr, confluenceFixtures[pair[1]].expr, a, b)
		}
	}
	return nil
}
