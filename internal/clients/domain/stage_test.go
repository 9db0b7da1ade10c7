package domain

import "testing"

func TestAdvance(t *testing.T) {
	cases := []struct {
		name    string
		current Stage
		event   Event
		want    Stage
	}{
		{"sent moves prospect forward", StageProspect, QuoteSent(), StageProposal},
		{"sent keeps proposal", StageProposal, QuoteSent(), StageProposal},
		{"sent keeps won", StageClosedWon, QuoteSent(), StageClosedWon},
		{"sent keeps lost", StageClosedLost, QuoteSent(), StageClosedLost},
		{"refused after won", StageClosedWon, QuoteRefused(), StageClosedLost},
		{"refused from prospect", StageProspect, QuoteRefused(), StageClosedLost},
		{"override backwards", StageClosedLost, ManualOverride(StageProspect), StageProspect},
		{"override forwards", StageProspect, ManualOverride(StageClosedWon), StageClosedWon},
		{"empty override is a no-op", StageProposal, ManualOverride(""), StageProposal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Advance(tc.current, tc.event); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestAdvance_AcceptedAlwaysWins(t *testing.T) {
	for _, st := range AllStages {
		if got := Advance(st, QuoteAccepted()); got != StageClosedWon {
			t.Fatalf("from %s: expected closed_won, got %s", st, got)
		}
	}
}

func TestParseStage(t *testing.T) {
	if st, err := ParseStage("closed_won"); err != nil || st != StageClosedWon {
		t.Fatalf("unexpected %v %v", st, err)
	}
	if _, err := ParseStage("nurture"); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}
