package condition

import (
	"errors"
	"testing"

	"github.com/mpajak/betslip/internal/domain"
)

func finishedEvent(home, away int) *domain.Event {
	return &domain.Event{
		ID:        7,
		Sport:     "football",
		HomeParty: "Lions",
		AwayParty: "Eagles",
		Finished:  true,
		Result: domain.EventResult{
			FinalScore: domain.Score{Home: home, Away: away},
			Parts: []domain.PartScore{
				{Number: 1, Score: domain.Score{Home: 1, Away: 0}},
				{Number: 2, Score: domain.Score{Home: home - 1, Away: away}},
			},
		},
	}
}

func TestSubstitute(t *testing.T) {
	ev := finishedEvent(3, 1)

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "home vs away shortcut",
			template: "{game.homeScore} > {game.awayScore}",
			want:     "3 > 1",
		},
		{
			name:     "nested final score path",
			template: "{event.finalScore.home} >= {event.finalScore.away}",
			want:     "3 >= 1",
		},
		{
			name:     "case insensitive segments",
			template: "{Event.FinalScore.Total} == 4",
			want:     "4 == 4",
		},
		{
			name:     "repeated placeholder resolves each time",
			template: "{e.homeScore} + {e.homeScore} > 5",
			want:     "3 + 3 > 5",
		},
		{
			name:     "no placeholders passes through",
			template: "1 < 2",
			want:     "1 < 2",
		},
		{
			name:     "string field substitutes verbatim",
			template: `"{e.homeParty}" == "Lions"`,
			want:     `"Lions" == "Lions"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Substitute(tt.template, ev)
			if err != nil {
				t.Fatalf("Substitute(%q) error: %v", tt.template, err)
			}
			if got != tt.want {
				t.Errorf("Substitute(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	ev := finishedEvent(3, 1)

	tests := []struct {
		name     string
		template string
		want     bool
	}{
		{"home win", "{g.homeScore} > {g.awayScore}", true},
		{"away win", "{g.awayScore} > {g.homeScore}", false},
		{"draw check", "{g.homeScore} == {g.awayScore}", false},
		{"total over", "{g.finalScore.total} > 3.5", true},
		{"total under", "{g.finalScore.total} < 3.5", false},
		{"margin", "{g.finalScore.diff} >= 2", true},
		{"conjunction", "{g.homeScore} > 0 && {g.awayScore} > 0", true},
		{"disjunction", "{g.homeScore} > 10 || {g.awayScore} >= 1", true},
		{"parentheses", "({g.homeScore} > 10 || {g.awayScore} >= 1) && {g.finished} == true", true},
		{"first part home lead", "{g.firstPart.home} > {g.firstPart.away}", true},
		{"negation", "!({g.homeScore} < {g.awayScore})", true},
		{"quoted string compare", `"{g.sport}" == "football"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.template, ev)
			if err != nil {
				t.Fatalf("Evaluate(%q) error: %v", tt.template, err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.template, got, tt.want)
			}
		})
	}
}

func TestEvaluateMalformed(t *testing.T) {
	ev := finishedEvent(2, 2)

	tests := []struct {
		name     string
		template string
	}{
		{"unknown field", "{game.nonexistentField} > 1"},
		{"unknown nested field", "{game.finalScore.banana} > 1"},
		{"path past terminal", "{game.homeScore.home} > 1"},
		{"path stops at object", "{game.finalScore} > 1"},
		{"empty placeholder", "{} > 1"},
		{"root only", "{game} > 1"},
		{"bad syntax after substitution", "{game.homeScore} >"},
		{"non boolean result", "{game.homeScore} + 1"},
		{"unquoted string operand", "{game.sport} == {game.sport}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.template, ev)
			if err == nil {
				t.Fatalf("Evaluate(%q) expected error, got none", tt.template)
			}
			if !errors.Is(err, domain.ErrMalformedCondition) {
				t.Errorf("Evaluate(%q) error = %v, want ErrMalformedCondition", tt.template, err)
			}
		})
	}
}
