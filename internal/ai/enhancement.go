package ai

import "strings"

// Marker strings are the persisted form of non-success outcomes. They survive
// in the enhanced_text column so a record can be reconstructed later.
const (
	DisabledMarker = "AI enhancement disabled."
	FailedPrefix   = "AI enhancement failed: "
)

// Outcome tags the result of the enhancement stage.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeDisabled
	OutcomeFailed
)

// Enhancement is the tagged result of the AI stage. The stage never raises:
// every outcome, including transport failures, is representable as a value,
// which keeps the pipeline's control flow uniform downstream.
type Enhancement struct {
	Outcome Outcome
	Text    string // populated for OutcomeSuccess
	Reason  string // populated for OutcomeFailed
}

// Success wraps enhanced text returned by the model.
func Success(text string) Enhancement {
	return Enhancement{Outcome: OutcomeSuccess, Text: text}
}

// Disabled marks the expected, non-error outcome when no provider is
// configured.
func Disabled() Enhancement {
	return Enhancement{Outcome: OutcomeDisabled}
}

// Failed wraps an absorbed enhancement failure.
func Failed(reason string) Enhancement {
	return Enhancement{Outcome: OutcomeFailed, Reason: reason}
}

// Marker renders the string form persisted on the work item.
func (e Enhancement) Marker() string {
	switch e.Outcome {
	case OutcomeDisabled:
		return DisabledMarker
	case OutcomeFailed:
		return FailedPrefix + e.Reason
	default:
		return e.Text
	}
}

// ParseEnhancement reverses Marker for records loaded from the store.
func ParseEnhancement(s string) Enhancement {
	switch {
	case s == DisabledMarker:
		return Disabled()
	case strings.HasPrefix(s, FailedPrefix):
		return Failed(strings.TrimPrefix(s, FailedPrefix))
	default:
		return Success(s)
	}
}
