package forensics

import (
	"fmt"
	"time"

	"realcv/internal/tracking"
)

// Tier is the trust tier of a writing session, 1 (basic) to 3 (high).
type Tier int

const (
	TierBasic  Tier = 1
	TierMedium Tier = 2
	TierHigh   Tier = 3
)

// Tier thresholds. Every surface that shows a tier goes through Classify.
const (
	HighTierTypingTime   = 15 * time.Minute
	HighTierMinEdits     = 3
	MediumTierTypingTime = 5 * time.Minute
	MediumTierMinEdits   = 2
)

var tierLabels = map[Tier]string{
	TierHigh:   "High Trust - Verified Human",
	TierMedium: "Medium Trust - Process-Based Proof",
	TierBasic:  "Basic Trust - Limited Evidence",
}

// Classify returns the trust tier of s. The first matching rule wins:
// tier 3 needs 15 minutes of typing, 3 edits and no large paste; tier 2
// needs 5 minutes and 2 edits. Typing time is taken in whole minutes as
// printed on certificates. A nil session is tier 1.
func Classify(s *tracking.WritingSession) Tier {
	if s == nil {
		return TierBasic
	}
	minutes := s.TypingMinutes()
	switch {
	case minutes >= int(HighTierTypingTime/time.Minute) &&
		s.EditCount >= HighTierMinEdits &&
		s.LargePasteCount() == 0:
		return TierHigh
	case minutes >= int(MediumTierTypingTime/time.Minute) &&
		s.EditCount >= MediumTierMinEdits:
		return TierMedium
	default:
		return TierBasic
	}
}

// Label returns the fixed label of the tier.
func (t Tier) Label() string {
	if l, ok := tierLabels[t]; ok {
		return l
	}
	return tierLabels[TierBasic]
}

// CertificateLabel returns the label printed on certificates, such as
// "Tier 3: High Trust - Verified Human".
func (t Tier) CertificateLabel() string {
	if t < TierBasic || t > TierHigh {
		t = TierBasic
	}
	return fmt.Sprintf("Tier %d: %s", int(t), t.Label())
}

func (t Tier) String() string { return t.Label() }
