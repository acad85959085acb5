// Package gate implements the Admission Gate: the predicate
// that accepts or rejects a HEAD ResultModel against a BASE ResultModel
// using hard anti-regression constraints (H), a PCQ threshold (P), and a
// strict Q improvement requirement (Q ≥ ε).
package gate

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/aperturehq/aperture/internal/config"
	"github.com/aperturehq/aperture/internal/logging"
	"github.com/aperturehq/aperture/internal/model"
	"github.com/aperturehq/aperture/internal/quality"
)

// State is the gate's evaluation state machine: Pending ->
// Evaluating -> (Accepted|Rejected). Rejection is terminal for the PR it
// evaluates; there is no transition back to Pending.
type State string

const (
	StatePending    State = "Pending"
	StateEvaluating State = "Evaluating"
	StateAccepted   State = "Accepted"
	StateRejected   State = "Rejected"
)

// PredicateName identifies which admission subpredicate a Reason concerns.
type PredicateName string

const (
	PredicateHard PredicateName = "H" // no regression on any hard-set risk index
	PredicatePCQ  PredicateName = "P" // PCQ_head >= tau
	PredicateQ    PredicateName = "Q" // Q_head >= Q_base + epsilon
)

// Reason is one failed subpredicate; for PredicateHard there is one Reason
// per regressed risk index, naming that index.
type Reason struct {
	Predicate PredicateName     `json:"predicate"`
	RiskIndex config.RiskIndex  `json:"risk_index,omitempty"`
	Message   string            `json:"message"`
}

// Verdict is the gate's typed result: accepted flag, individually reported
// subpredicate results, the raw Q/PCQ values (always reported, even on
// rejection), and a constructive remediation witness attached only on
// rejection.
type Verdict struct {
	// RunID is an opaque, run-scoped handle for correlating this verdict
	// across logs and CI annotations. It carries no content identity of its
	// own — the ResultModels' SnapshotIDs already do that — so two
	// evaluations of the identical (base, head) pair get distinct RunIDs.
	RunID    string          `json:"run_id"`
	State    State           `json:"state"`
	Accepted bool            `json:"accepted"`
	Reasons  []Reason        `json:"reasons,omitempty"`
	QHead    float64         `json:"q_head"`
	QBase    float64         `json:"q_base"`
	PCQHead  float64         `json:"pcq_head"`
	DeltaQ   float64         `json:"delta_q"`
	Witness  *model.RefactoringPlan `json:"witness,omitempty"`
}

// Gate evaluates the admission predicate over (base, head) ResultModels.
type Gate struct {
	engine *quality.Engine
}

// NewGate returns a Gate.
func NewGate() *Gate {
	return &Gate{engine: quality.NewEngine()}
}

// Admit evaluates (H) ∧ (P) ∧ (Q) over (base, head) under policy. base and
// head must already carry a computed QualityReport (i.e. come from
// pipeline.Pipeline.Analyze); Admit does not recompute it.
func (g *Gate) Admit(base, head *model.ResultModel, policy *config.Policy) Verdict {
	log := logging.Get(logging.CategoryGate)
	log.Info("evaluating admission: base=%s head=%s", base.SnapshotID, head.SnapshotID)

	v := Verdict{
		RunID:   uuid.New().String(),
		State:   StateEvaluating,
		QHead:   head.Quality.Q,
		QBase:   base.Quality.Q,
		PCQHead: head.Quality.PCQ,
		DeltaQ:  head.Quality.Q - base.Quality.Q,
	}

	hardReasons := evaluateHardSet(base, head, policy)
	v.Reasons = append(v.Reasons, hardReasons...)

	pcqOK := head.Quality.PCQ >= policy.Tau
	if !pcqOK {
		v.Reasons = append(v.Reasons, Reason{
			Predicate: PredicatePCQ,
			Message:   fmt.Sprintf("PCQ_head %.4f < tau %.4f", head.Quality.PCQ, policy.Tau),
		})
	}

	qOK := head.Quality.Q >= base.Quality.Q+policy.Epsilon
	if !qOK {
		v.Reasons = append(v.Reasons, Reason{
			Predicate: PredicateQ,
			Message:   fmt.Sprintf("Q_head %.4f < Q_base %.4f + epsilon %.4f", head.Quality.Q, base.Quality.Q, policy.Epsilon),
		})
	}

	v.Accepted = len(hardReasons) == 0 && pcqOK && qOK
	if v.Accepted {
		v.State = StateAccepted
		log.Info("admitted: delta_q=%.4f pcq_head=%.4f", v.DeltaQ, v.PCQHead)
		return v
	}

	v.State = StateRejected
	log.Warn("rejected: %d reasons", len(v.Reasons))

	// Witness on rejection: the constructive PCE k-witness generated on
	// head, so the verdict always carries an actionable remediation plan
	// regardless of which subpredicate failed.
	plan := quality.GeneratePCE(head.Quality.ModuleUtility, policy.Tau, policy.KWitnessMax)
	v.Witness = &plan
	return v
}

// evaluateHardSet implements predicate (H): for every risk index in the
// policy's hard set, x_head[i] must not exceed x_base[i]. This check is
// anti-compensation by construction: it is computed entirely
// independently of Q, so no amount of improvement elsewhere in the risk
// vector can offset one hard-set regression.
func evaluateHardSet(base, head *model.ResultModel, policy *config.Policy) []Reason {
	hard := make([]config.RiskIndex, len(policy.HardConstraints))
	copy(hard, policy.HardConstraints)
	sort.Slice(hard, func(i, j int) bool { return hard[i] < hard[j] })

	var reasons []Reason
	for _, idx := range hard {
		xBase := base.Quality.Risks[idx]
		xHead := head.Quality.Risks[idx]
		if xHead > xBase {
			reasons = append(reasons, Reason{
				Predicate: PredicateHard,
				RiskIndex: idx,
				Message:   fmt.Sprintf("%s regressed: head %.4f > base %.4f", idx, xHead, xBase),
			})
		}
	}
	return reasons
}
