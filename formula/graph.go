package formula

import (
	"errors"
	"sort"
	"time"

	"metric-agent/models"
	"metric-agent/observability"
)

// FetchBase resolves one base metric's value in the current scope. It returns
// ok=false on a clean miss; err is reserved for infrastructure failures.
type FetchBase func(name string) (float64, bool, error)

// Evaluation is the outcome of one formula evaluation: the result plus every
// intermediate value, kept for expression explanation.
type Evaluation struct {
	Result     float64
	ResultVar  string
	Values     map[string]float64 // base values and compute steps
	BaseValues map[string]float64 // variable key -> fetched value
}

// EvaluateGraph fetches every base metric a formula declares, then runs the
// compute steps to a result.
//
// Any base metric that cannot be resolved fails the whole evaluation with a
// MissingBaseMetricError naming exactly which metrics are absent; partial
// results are never produced. Compute steps evaluate iteratively so an
// intermediate may reference earlier intermediates regardless of authored
// position; the pass budget of len(steps)+2 tolerates multi-hop chains while
// bounding cycles. The final step carries the result.
func EvaluateGraph(f *models.Formula, fetch FetchBase, scope Scope) (*Evaluation, error) {
	start := time.Now()

	if len(f.Compute) == 0 {
		return nil, ErrEmptyGraph
	}

	baseVals := make(map[string]float64, len(f.Variables))
	var missing []string
	for varKey, baseName := range f.Variables {
		v, ok, err := fetch(baseName)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, baseName)
			continue
		}
		baseVals[varKey] = v
	}
	if len(missing) > 0 {
		observability.GetMetrics().RecordFormulaEval("missing_base", time.Since(start))
		sort.Strings(missing)
		return nil, &MissingBaseMetricError{Missing: missing, Scope: scope}
	}

	values := make(map[string]float64, len(baseVals)+len(f.Compute))
	for k, v := range baseVals {
		values[k] = v
	}

	pending := make(map[string]bool, len(f.Compute))
	for _, step := range f.Compute {
		pending[step.Name] = true
	}

	var evalErr error
	for pass := 0; pass < len(f.Compute)+2 && len(pending) > 0; pass++ {
		progressed := false
		for _, step := range f.Compute {
			if !pending[step.Name] {
				continue
			}
			v, err := Eval(step.Expr, values)
			if err != nil {
				// Division by zero never resolves on a later pass; keep it
				// for the final error instead of reporting a stuck step.
				if errors.Is(err, ErrDivisionByZero) {
					evalErr = err
				}
				continue
			}
			values[step.Name] = v
			delete(pending, step.Name)
			progressed = true
		}
		if !progressed {
			break
		}
	}

	if len(pending) > 0 {
		observability.GetMetrics().RecordFormulaEval("unresolvable", time.Since(start))
		if evalErr != nil {
			return nil, evalErr
		}
		stuck := make([]string, 0, len(pending))
		for _, step := range f.Compute {
			if pending[step.Name] {
				stuck = append(stuck, step.Name)
			}
		}
		return nil, &UnresolvableFormulaError{Stuck: stuck}
	}

	resultVar := f.ResultVar()
	observability.GetMetrics().RecordFormulaEval("ok", time.Since(start))

	return &Evaluation{
		Result:     values[resultVar],
		ResultVar:  resultVar,
		Values:     values,
		BaseValues: baseVals,
	}, nil
}
