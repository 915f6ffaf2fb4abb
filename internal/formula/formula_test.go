package formula

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdsinventory/backend/internal/shared"
)

func TestEvaluateArithmetic(t *testing.T) {
	cases := []struct {
		expr string
		vars map[string]float64
		want float64
	}{
		{"1 + 2 * 3", nil, 7},
		{"(1 + 2) * 3", nil, 9},
		{"width * height", map[string]float64{"width": 2, "height": 3.5}, 7},
		{"W * H / 2", map[string]float64{"w": 4, "h": 3}, 6},
		{"2 ^ 3 ^ 2", nil, 512},
		{"2 ** 3", nil, 8},
		{"-2 ^ 2", nil, -4},
		{"2 ^ -1", nil, 0.5},
		{"-7 % 3", nil, 2},
		{"7 % -3", nil, -2},
		{"+.5 + 1e1", nil, 10.5},
		{"ancho*alto + 0.1*ancho", map[string]float64{"ancho": 2, "alto": 1}, 2.2},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.expr, tc.vars)
		require.NoError(t, err, tc.expr)
		require.InDelta(t, tc.want, got, 1e-9, tc.expr)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	vars := map[string]float64{"width": 1.3, "height": 2.7, "layers": 3}
	first, err := Evaluate("width*height*layers/7 + width%0.4", vars)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := Evaluate("width*height*layers/7 + width%0.4", vars)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestEvaluateUnknownVariable(t *testing.T) {
	_, err := Evaluate("width * depth", map[string]float64{"width": 1})
	require.ErrorIs(t, err, shared.ErrUnknownVariable)
	require.Contains(t, err.Error(), "depth")
}

func TestEvaluateDivisionByZero(t *testing.T) {
	_, err := Evaluate("1 / (w - w)", map[string]float64{"w": 3})
	require.ErrorIs(t, err, shared.ErrInvalidFormula)

	_, err = Evaluate("0 ^ -1", nil)
	require.ErrorIs(t, err, shared.ErrInvalidFormula)
}

func TestParseRejectsDisallowedNodes(t *testing.T) {
	for _, expr := range []string{
		"abs(width)",
		"width.real",
		"width[0]",
		"__import__('os')",
		"width if height else 1",
		"width < height",
		"width, height",
		"lambda: 1",
		"width = 2",
		"'text'",
		"2 +",
		"(2 + 3",
		"",
		"   ",
	} {
		_, err := Parse(expr)
		require.ErrorIs(t, err, shared.ErrInvalidFormula, expr)
	}
}

func TestValidateRejectsFunctionCallRegardlessOfNames(t *testing.T) {
	_, err := Validate("sqrt(width)", []string{"width", "sqrt"})
	require.ErrorIs(t, err, shared.ErrInvalidFormula)
	_, err = Validate("max(1, 2)", nil)
	require.ErrorIs(t, err, shared.ErrInvalidFormula)
}

func TestValidateNamesAndAllowList(t *testing.T) {
	names, err := Validate("Width * HEIGHT + width", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"height", "width"}, names)

	names, err = Validate("w*h", []string{"W", "H", "ancho"})
	require.NoError(t, err)
	require.Equal(t, []string{"h", "w"}, names)

	_, err = Validate("w*depth", []string{"w", "h"})
	require.ErrorIs(t, err, shared.ErrInvalidFormula)
	require.Contains(t, err.Error(), "depth")
}

func TestValidateSmokeEvaluation(t *testing.T) {
	_, err := Validate("width - height", nil)
	require.ErrorIs(t, err, shared.ErrInvalidFormula)

	_, err = Validate("width / (height - 1)", nil)
	require.ErrorIs(t, err, shared.ErrInvalidFormula)

	_, err = Validate("-width", nil)
	require.ErrorIs(t, err, shared.ErrInvalidFormula)

	names, err := Validate("2.5", nil)
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestValidateLength(t *testing.T) {
	long := "w"
	for len(long) <= MaxLength {
		long += "+w"
	}
	_, err := Validate(long, nil)
	require.ErrorIs(t, err, shared.ErrInvalidFormula)
}

func TestExprReuse(t *testing.T) {
	expr, err := Parse("qty * factor")
	require.NoError(t, err)
	require.Equal(t, []string{"factor", "qty"}, expr.Names())

	v, err := expr.Eval(map[string]float64{"qty": 2, "factor": 1.5})
	require.NoError(t, err)
	require.InDelta(t, 3.0, v, 1e-12)

	v, err = expr.Eval(map[string]float64{"qty": 4, "factor": 0.25})
	require.NoError(t, err)
	require.InDelta(t, 1.0, v, 1e-12)
}
