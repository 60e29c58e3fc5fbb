package formula

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDivisionByZero is returned when an expression divides by zero.
var ErrDivisionByZero = errors.New("division by zero")

// ErrEmptyGraph is returned when a formula has no compute steps, so no result
// variable can be identified.
var ErrEmptyGraph = errors.New("formula has no compute steps")

// Scope names the (company, year, quarter) cell a formula was evaluated for.
// It rides along on errors so clarification messages can cite the exact cell.
type Scope struct {
	Company string
	Year    int
	Quarter int
}

func (s Scope) String() string {
	return fmt.Sprintf("%s %dQ%d", s.Company, s.Year, s.Quarter)
}

// MissingBaseMetricError reports base metrics that have no stored value and no
// evaluable formula in the requested scope. This is the primary actionable
// failure surfaced to end users.
type MissingBaseMetricError struct {
	Missing []string // canonical base metric names, sorted
	Scope   Scope
}

func (e *MissingBaseMetricError) Error() string {
	return fmt.Sprintf("基础指标缺失：%s（%s）", strings.Join(e.Missing, "、"), e.Scope)
}

// UnresolvableFormulaError reports compute steps that never became evaluable,
// usually an undefined variable or a dependency cycle in the graph.
type UnresolvableFormulaError struct {
	Stuck []string // step names in graph order
}

func (e *UnresolvableFormulaError) Error() string {
	return fmt.Sprintf("公式未能解析：%s", strings.Join(e.Stuck, "、"))
}

// UnknownVariableError reports a reference to a variable absent from the
// evaluation environment.
type UnknownVariableError struct {
	Name string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("unknown variable %q", e.Name)
}
