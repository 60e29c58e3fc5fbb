// Package formula evaluates derived metrics declared as expression graphs
// over base metrics.
package formula

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"
)

// Eval evaluates an arithmetic expression against the given variable
// environment. Only the operators + - * / ( ), unary +/-, numeric literals,
// environment variables, and the functions abs/min/max/round/sqrt are
// allowed; anything else is rejected. Expressions are parsed with the Go
// grammar, which covers the authored formula syntax exactly.
func Eval(expr string, env map[string]float64) (float64, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", expr, err)
	}
	return evalNode(node, env)
}

func evalNode(node ast.Expr, env map[string]float64) (float64, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return 0, fmt.Errorf("unsupported literal %s", n.Value)
		}
		return strconv.ParseFloat(n.Value, 64)

	case *ast.Ident:
		v, ok := env[n.Name]
		if !ok {
			return 0, &UnknownVariableError{Name: n.Name}
		}
		return v, nil

	case *ast.ParenExpr:
		return evalNode(n.X, env)

	case *ast.UnaryExpr:
		v, err := evalNode(n.X, env)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.SUB:
			return -v, nil
		case token.ADD:
			return v, nil
		}
		return 0, fmt.Errorf("unsupported unary operator %s", n.Op)

	case *ast.BinaryExpr:
		x, err := evalNode(n.X, env)
		if err != nil {
			return 0, err
		}
		y, err := evalNode(n.Y, env)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return x + y, nil
		case token.SUB:
			return x - y, nil
		case token.MUL:
			return x * y, nil
		case token.QUO:
			if y == 0 {
				return 0, ErrDivisionByZero
			}
			return x / y, nil
		}
		return 0, fmt.Errorf("unsupported operator %s", n.Op)

	case *ast.CallExpr:
		ident, ok := n.Fun.(*ast.Ident)
		if !ok {
			return 0, fmt.Errorf("unsupported call target")
		}
		args := make([]float64, 0, len(n.Args))
		for _, a := range n.Args {
			v, err := evalNode(a, env)
			if err != nil {
				return 0, err
			}
			args = append(args, v)
		}
		return callFunc(ident.Name, args)
	}

	return 0, fmt.Errorf("unsupported expression node %T", node)
}

func callFunc(name string, args []float64) (float64, error) {
	switch name {
	case "abs":
		if len(args) != 1 {
			return 0, fmt.Errorf("abs expects 1 argument, got %d", len(args))
		}
		return math.Abs(args[0]), nil
	case "sqrt":
		if len(args) != 1 {
			return 0, fmt.Errorf("sqrt expects 1 argument, got %d", len(args))
		}
		return math.Sqrt(args[0]), nil
	case "round":
		if len(args) != 1 {
			return 0, fmt.Errorf("round expects 1 argument, got %d", len(args))
		}
		return math.Round(args[0]), nil
	case "min":
		if len(args) == 0 {
			return 0, fmt.Errorf("min expects at least 1 argument")
		}
		v := args[0]
		for _, a := range args[1:] {
			v = math.Min(v, a)
		}
		return v, nil
	case "max":
		if len(args) == 0 {
			return 0, fmt.Errorf("max expects at least 1 argument")
		}
		v := args[0]
		for _, a := range args[1:] {
			v = math.Max(v, a)
		}
		return v, nil
	}
	return 0, fmt.Errorf("unsupported function %q", name)
}
