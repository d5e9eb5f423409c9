package condition

import "testing"

func TestEvalExpr(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"3 > 1", true},
		{"1 > 3", false},
		{"2 >= 2", true},
		{"2 <= 1.5", false},
		{"1.5 == 1.5", true},
		{"1.5 != 1.5", false},
		{"true", true},
		{"false", false},
		{"true && false", false},
		{"true || false", true},
		{"!false", true},
		{"!(1 > 2)", true},
		{"(1 > 2) || (3 > 2 && 2 > 1)", true},
		{"1 + 2 > 2.5", true},
		{"10 - 4 == 6", true},
		{"2 * 3 < 7", true},
		{"6 / 2 == 3", true},
		{"-1 < 0", true},
		{`"abc" == "abc"`, true},
		{`"abc" < "abd"`, true},
		{"true == true && 1 < 2", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := evalExpr(tt.input)
			if err != nil {
				t.Fatalf("evalExpr(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("evalExpr(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEvalExprErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"number result", "1 + 2"},
		{"string result", `"abc"`},
		{"dangling operator", "1 >"},
		{"unterminated string", `"abc == 1`},
		{"unbalanced paren", "(1 > 2"},
		{"trailing input", "1 > 2 3"},
		{"identifier", "homeScore > 1"},
		{"mixed comparison", `1 == "1"`},
		{"bool ordering", "true < false"},
		{"and on numbers", "1 && 2"},
		{"division by zero", "1 / 0 > 1"},
		{"chained comparison", "1 < 2 < 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := evalExpr(tt.input); err == nil {
				t.Errorf("evalExpr(%q) expected error, got none", tt.input)
			}
		})
	}
}
