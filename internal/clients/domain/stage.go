// Package domain holds the client pipeline rules.
package domain

import "fmt"

// Stage is a client's position in the sales funnel.
type Stage string

const (
	StageProspect   Stage = "prospect"
	StageProposal   Stage = "proposal"
	StageClosedWon  Stage = "closed_won"
	StageClosedLost Stage = "closed_lost"
)

// AllStages lists the funnel in order.
var AllStages = []Stage{StageProspect, StageProposal, StageClosedWon, StageClosedLost}

// ParseStage converts a stored or requested value into a Stage.
func ParseStage(s string) (Stage, error) {
	for _, st := range AllStages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown pipeline stage %q", s)
}

func (s Stage) String() string { return string(s) }

// rank orders stages along the funnel. Both closed stages count as past proposal.
func (s Stage) rank() int {
	switch s {
	case StageProspect:
		return 0
	case StageProposal:
		return 1
	case StageClosedWon, StageClosedLost:
		return 2
	}
	return 0
}

// EventKind is what happened to move a client.
type EventKind string

const (
	EventQuoteSent      EventKind = "quote_sent"
	EventQuoteAccepted  EventKind = "quote_accepted"
	EventQuoteRefused   EventKind = "quote_refused"
	EventManualOverride EventKind = "manual_override"
)

// Event drives the tracker. Stage is only read for manual overrides.
type Event struct {
	Kind  EventKind
	Stage Stage
}

// QuoteSent, QuoteAccepted and QuoteRefused are the quote-driven events.
func QuoteSent() Event     { return Event{Kind: EventQuoteSent} }
func QuoteAccepted() Event { return Event{Kind: EventQuoteAccepted} }
func QuoteRefused() Event  { return Event{Kind: EventQuoteRefused} }

// ManualOverride sets the stage directly.
func ManualOverride(stage Stage) Event {
	return Event{Kind: EventManualOverride, Stage: stage}
}

// Advance returns the stage after ev. Stage is an observation rather than a
// contract, so this never fails: a sent quote only pulls a prospect forward,
// accepted and refused quotes close the client either way, and a manual
// override is the one way back down the funnel.
func Advance(current Stage, ev Event) Stage {
	switch ev.Kind {
	case EventQuoteSent:
		if current.rank() >= StageProposal.rank() {
			return current
		}
		return StageProposal
	case EventQuoteAccepted:
		return StageClosedWon
	case EventQuoteRefused:
		return StageClosedLost
	case EventManualOverride:
		if ev.Stage == "" {
			return current
		}
		return ev.Stage
	}
	return current
}
