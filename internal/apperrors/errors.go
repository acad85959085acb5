// Package apperrors is the error taxonomy shared across every package,
// grouped by recovery semantics: input errors (fatal, pre-analysis),
// containment errors (recovered per-analyzer), invariant errors (fatal,
// build-time bugs in the system itself), and resource errors (normalizer
// variant recoverable, pipeline variant fatal).
package apperrors

import "errors"

// Input errors. Fatal; abort before analysis.
var (
	ErrNotARepository = errors.New("not a repository")
	ErrRefNotFound     = errors.New("ref not found")
	ErrPolicyInvalid   = errors.New("policy invalid")
)

// Containment errors. Recovered locally within the scheduler.
var (
	ErrFileUnreadable        = errors.New("file unreadable")
	ErrAnalyzerFailed        = errors.New("analyzer failed")
	ErrAnalyzerTimeout       = errors.New("analyzer timed out")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// Invariant errors. Fatal; indicate a build-time error in the system itself.
var (
	ErrDependencyCycle         = errors.New("dependency cycle")
	ErrConfluenceSelfCheckFailed = errors.New("confluence self-check failed")
	ErrStratificationBreach    = errors.New("stratification breach")
	ErrUnknownKind             = errors.New("unknown normalization kind")
)

// Resource errors.
var (
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrBudgetExceeded    = errors.New("normalizer step budget exceeded")
)

// Pipeline-level terminal errors.
var (
	ErrCancelled     = errors.New("analysis cancelled")
	ErrNonTerminating = errors.New("normalizer rule set is non-terminating")
)
