// Package forensics classifies and scores writing sessions for authorship.
//
// Everything here is a pure function over a sealed tracking.WritingSession:
// trust tiers, the policy-driven authenticity score and the badge lookup.
// Nothing in this package mutates a session.
package forensics

import "errors"

// ErrSessionNotSealed is returned when scoring a session that has no end time.
var ErrSessionNotSealed = errors.New("session not sealed")

// Effort is the ordinal effort level of a writing session.
type Effort string

const (
	EffortLow    Effort = "Low"
	EffortMedium Effort = "Medium"
	EffortHigh   Effort = "High"
)

// TypingMetrics is the scorer output for one writing session.
type TypingMetrics struct {
	HumanLikelihood   int      `json:"humanLikelihood"`
	EffortScore       Effort   `json:"effortScore"`
	AISignatureScore  float64  `json:"aiSignatureScore"`
	SuspiciousPasting bool     `json:"suspiciousPasting"`
	Flags             []string `json:"flags"`
}

// Category is the visual weight of a badge.
type Category string

const (
	CategorySuccess Category = "success"
	CategoryInfo    Category = "info"
	CategoryWarning Category = "warning"
	CategoryDanger  Category = "danger"
)

// Badge is one display label derived from TypingMetrics.
type Badge struct {
	Label    string   `json:"label"`
	Category Category `json:"category"`
}
