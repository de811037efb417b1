package models

// Applicability is the tri-state outcome of the threshold rule engine.
type Applicability string

const (
	ApplicabilityYes     Applicability = "yes"
	ApplicabilityNo      Applicability = "no"
	ApplicabilityUnknown Applicability = "unknown"
)

// Verdict pairs the applicability outcome with a deterministic,
// human-readable justification.
type Verdict struct {
	Applies Applicability `json:"applies"`
	Reason  string        `json:"reason"`
}
