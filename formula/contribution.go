package formula

import (
	"sort"

	"metric-agent/models"
)

// ContributionByVariables attributes a result's change between two variable
// environments to the individual variables, by re-evaluating the expression
// with one variable moved to its new value at a time while the rest stay at
// base. The per-variable estimates are qualitative: for nonlinear expressions
// they do not sum to the total delta.
func ContributionByVariables(expr string, baseVals, newVals map[string]float64) (rows []models.VariableImpact, totalDelta float64, err error) {
	baseY, err := Eval(expr, baseVals)
	if err != nil {
		return nil, 0, err
	}
	newY, err := Eval(expr, newVals)
	if err != nil {
		return nil, 0, err
	}
	totalDelta = newY - baseY

	keys := make([]string, 0, len(newVals))
	for k := range newVals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		mid := make(map[string]float64, len(baseVals))
		for bk, bv := range baseVals {
			mid[bk] = bv
		}
		mid[k] = newVals[k]

		row := models.VariableImpact{Variable: k}
		if bv, ok := baseVals[k]; ok {
			b := bv
			row.Base = &b
		}
		nv := newVals[k]
		row.New = &nv

		if midY, evalErr := Eval(expr, mid); evalErr == nil {
			impact := midY - baseY
			row.ImpactEstimate = &impact
		}
		rows = append(rows, row)
	}

	return rows, totalDelta, nil
}
