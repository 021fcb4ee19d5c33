package formula

import (
	"math"
	"testing"
)

func TestEval(t *testing.T) {
	tests := []struct {
		expr  string
		value float64
		want  float64
	}{
		{"#", 42, 42},
		{"#/2", 41, 20.5},
		{"#*2", 21, 42},
		{"#+5", 10, 15},
		{"#-5", 10, 5},
		{"(#*10)+5", 3, 35},
		{"(#-5)/10", 215, 21},
		{"# / 2", 41, 20.5},
		{"-#", 7, -7},
		{"#*-1", 7, -7},
		{"#*0.5", 41, 20.5},
		{"100", 7, 100},
		{"((#))", 9, 9},
	}
	for _, tt := range tests {
		got, err := Eval(tt.expr, tt.value)
		if err != nil {
			t.Errorf("Eval(%q, %v): unexpected error: %v", tt.expr, tt.value, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Eval(%q, %v) = %v, want %v", tt.expr, tt.value, got, tt.want)
		}
	}
}

func TestEvalErrors(t *testing.T) {
	exprs := []string{
		"",
		"#/0",
		"#/(#-#)",
		"(#",
		"#)",
		"#+",
		"#$2",
		"1..2",
	}
	for _, expr := range exprs {
		if _, err := Eval(expr, 5); err == nil {
			t.Errorf("Eval(%q, 5): expected error, got none", expr)
		}
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		v      float64
		format string
		want   float64
	}{
		{20.55, "{0:.1f}", 20.6},
		{20.54, "{0:.1f}", 20.5},
		{20.5, "{0:.0f}", 21},
		{20.444, "{0:.2f}", 20.44},
		{20.55, "", 20.55},
		{20.55, "{0}", 20.55},
		{20.55, "{0:d}", 20.55},
	}
	for _, tt := range tests {
		if got := Round(tt.v, tt.format); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Round(%v, %q) = %v, want %v", tt.v, tt.format, got, tt.want)
		}
	}
}
