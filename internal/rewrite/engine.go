package rewrite

import (
	"fmt"

	"github.com/aperturehq/aperture/internal/apperrors"
	"github.com/aperturehq/aperture/internal/logging"
)

// DefaultStepBudget bounds how many rewrite steps Normalize will take before
// giving up, matching config.DefaultPolicy().NormalizerStepBudget.
const DefaultStepBudget = 10000

// Normalizer canonicalizes license expressions, version ranges, and metric
// expressions via the term-rewriting rule families in this package. It is
// the sole authority for what counts as a normal form; every downstream
// analyzer depends only on its output, never on raw artifact text.
type Normalizer struct {
	stepBudget int
}

// NewNormalizer returns a Normalizer bounded by stepBudget rewrite steps per
// call. A non-positive budget falls back to DefaultStepBudget.
func NewNormalizer(stepBudget int) *Normalizer {
	if stepBudget <= 0 {
		stepBudget = DefaultStepBudget
	}
	return &Normalizer{stepBudget: stepBudget}
}

// Normalize rewrites artifact to its canonical form for kind. It returns
// apperrors.ErrBudgetExceeded, wrapping the best-effort partial result,
// if the rewrite system does not reach a fixpoint within the step budget —
// this should never happen for a confluent, terminating rule set on
// well-formed input, and signals either a malformed artifact or a rule bug.
func (n *Normalizer) Normalize(artifact string, kind Kind) (string, error) {
	log := logging.Get(logging.CategoryNormalizer)
	switch kind {
	case KindLicenseExpr:
		t := parseLicense(artifact)
		out, steps, ok := rewriteLicense(t, n.stepBudget)
		rendered := renderLicense(out)
		if !ok {
			log.Warn("license normalization exceeded budget after %d steps: %q", steps, artifact)
			return rendered, fmt.Errorf("%w: license expression %q after %d steps", apperrors.ErrBudgetExceeded, artifact, steps)
		}
		return rendered, nil

	case KindVersionRange:
		out, steps, ok := normalizeVersionRange(artifact, n.stepBudget)
		if !ok {
			log.Warn("version range normalization exceeded budget after %d steps: %q", steps, artifact)
			return out, fmt.Errorf("%w: version range %q after %d steps", apperrors.ErrBudgetExceeded, artifact, steps)
		}
		return out, nil

	case KindMetricExpr:
		t := parseMetric(artifact)
		out, steps, ok := rewriteMetric(t, n.stepBudget)
		rendered := renderMetric(out)
		if !ok {
			log.Warn("metric normalization exceeded budget after %d steps: %q", steps, artifact)
			return rendered, fmt.Errorf("%w: metric expression %q after %d steps", apperrors.ErrBudgetExceeded, artifact, steps)
		}
		return rendered, nil

	default:
		return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownKind, kind)
	}
}
