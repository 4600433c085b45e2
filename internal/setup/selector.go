package setup

import (
	"github.com/samber/lo"

	"github.com/Rajchodisetti/mmfs-scalper/internal/config"
)

// Selector picks the first setup whose precondition holds and evaluates it.
// At most one setup is considered per symbol per cycle.
type Selector struct {
	evaluators []Evaluator
}

func NewSelector(cfg config.Strategy) *Selector {
	return &Selector{
		evaluators: lo.Map(All, func(t Type, _ int) Evaluator { return NewEvaluator(t, cfg) }),
	}
}

// Applicable returns the setup whose precondition matches in, if any.
func (s *Selector) Applicable(in Input) (Evaluator, bool) {
	return lo.Find(s.evaluators, func(e Evaluator) bool { return e.Applies(in) })
}

// Evaluate runs the applicable setup. ok is false when no precondition
// matched; Result.OK is false when the setup rejected the candle.
func (s *Selector) Evaluate(in Input) (res Result, t Type, ok bool) {
	e, ok := s.Applicable(in)
	if !ok {
		return Result{Reason: "no setup precondition matched"}, "", false
	}
	return e.Evaluate(in), e.Type(), true
}
