package forensics

import (
	"fmt"
	"math"

	"realcv/internal/keystroke"
	"realcv/internal/tracking"
)

// Flags raised by the scorer in addition to Policy.PasteFlag.
const (
	FlagLowDensity  = "Low keystroke-to-text ratio"
	FlagFastTyping  = "Unusually fast typing speed"
	FlagLongPause   = "Unusually long pause detected"
	FlagNoEditing   = "No editing on lengthy response"
	FlagTabSwitches = "Multiple tab switches during typing"
)

// fallbackTypingMinutes floors the WPM denominator when a policy sets none.
const fallbackTypingMinutes = 0.1

// Score computes TypingMetrics for a sealed session under policy p. When
// text is non-empty it is the submitted text and takes precedence over the
// session's final text for length and word count.
func Score(s *tracking.WritingSession, text string, p Policy) (*TypingMetrics, error) {
	if s == nil || !s.Sealed() {
		return nil, ErrSessionNotSealed
	}

	in := newInputs(s, text, p)
	m := &TypingMetrics{
		SuspiciousPasting: in.suspiciousPasting(p),
		Flags:             make([]string, 0, 4),
	}

	score := p.Baseline
	deduct := func(penalty int, flag string) {
		if penalty == 0 {
			return
		}
		score -= penalty
		m.Flags = append(m.Flags, flag)
	}

	if m.SuspiciousPasting {
		deduct(p.PastePenalty, p.PasteFlag)
	}
	if p.DensityPenalty != 0 && in.density < p.MinKeystrokeDensity {
		deduct(p.DensityPenalty, FlagLowDensity)
	}
	if p.WPMPenalty != 0 && in.wpm > p.MaxWPM {
		deduct(p.WPMPenalty, FlagFastTyping)
	}
	if p.LongPausePenalty != 0 && in.longestPause >= p.LongPause.Milliseconds() {
		deduct(p.LongPausePenalty, FlagLongPause)
	}
	if p.NoEditPenalty != 0 && in.words > p.NoEditMinWords &&
		s.EditCount == 0 && s.BackspaceCount == 0 {
		deduct(p.NoEditPenalty, FlagNoEditing)
	}
	if p.EditRatioBonus != 0 && in.editRatio > p.EditRatioLow && in.editRatio < p.EditRatioHigh {
		score += p.EditRatioBonus
	}
	if p.TabSwitchPenalty != 0 && s.TabSwitches > p.MaxTabSwitches {
		deduct(p.TabSwitchPenalty, FlagTabSwitches)
	}

	m.HumanLikelihood = min(max(score, 0), 100)
	m.EffortScore = in.effort(s, p.Effort)
	m.AISignatureScore = in.aiSignature(s, p.AI)
	return m, nil
}

// MustScore is like Score but panics on an unsealed session.
func MustScore(s *tracking.WritingSession, text string, p Policy) *TypingMetrics {
	m, err := Score(s, text, p)
	if err != nil {
		panic(fmt.Sprintf("forensics: %v", err))
	}
	return m
}

// inputs are the derived quantities every rule reads.
type inputs struct {
	keystrokes    int
	pastes        int
	pastedChars   int
	textLength    int
	words         int
	typingMinutes float64
	density       float64
	wpm           float64
	editRatio     float64
	averagePause  float64
	longestPause  int64
}

func newInputs(s *tracking.WritingSession, text string, p Policy) inputs {
	in := inputs{
		keystrokes:   s.KeystrokeCount,
		pastes:       len(s.PasteEvents),
		pastedChars:  s.PastedChars(),
		textLength:   s.TextLength,
		words:        s.WordCount,
		averagePause: s.AveragePauseMs,
		longestPause: s.LongestPauseMs,
	}
	if text != "" {
		in.textLength = keystroke.TextLength(text)
		in.words = keystroke.WordCount(text)
	}
	in.typingMinutes = float64(s.TotalTypingTime) / float64(60_000)

	in.density = float64(in.keystrokes) / float64(max(in.textLength, 1))
	in.editRatio = float64(s.EditCount+s.BackspaceCount) / float64(max(in.keystrokes, 1))

	floor := p.MinTypingMinutes
	if floor <= 0 {
		floor = fallbackTypingMinutes
	}
	in.wpm = float64(in.words) / math.Max(in.typingMinutes, floor)
	return in
}

func (in inputs) suspiciousPasting(p Policy) bool {
	if in.pastes == 0 {
		return false
	}
	keys := float64(in.keystrokes)
	if p.PasteCountRatio > 0 && float64(in.pastes) > p.PasteCountRatio*keys {
		return true
	}
	return p.PasteVolumeRatio > 0 && float64(in.pastedChars) > p.PasteVolumeRatio*keys
}

func (in inputs) effort(s *tracking.WritingSession, e EffortPolicy) Effort {
	high := in.typingMinutes > e.HighMinutes && s.EditCount > e.HighEdits
	if e.HighWords > 0 {
		high = high && in.words > e.HighWords
	}
	if high {
		return EffortHigh
	}

	medium := in.typingMinutes > e.MediumMinutes || s.EditCount > e.MediumEdits
	if e.MediumWords > 0 {
		medium = medium || in.words > e.MediumWords
	}
	if medium {
		return EffortMedium
	}
	return EffortLow
}

func (in inputs) aiSignature(s *tracking.WritingSession, a AISignaturePolicy) float64 {
	var sig float64
	if in.pastes > 0 {
		sig += a.PasteWeight
	}
	if a.FastPause > 0 && in.averagePause > 0 &&
		in.averagePause < float64(a.FastPause.Milliseconds()) {
		sig += a.FastPauseWeight
	}
	if a.FastWPM > 0 && in.wpm > a.FastWPM {
		sig += a.FastWPMWeight
	}
	if a.LongPause > 0 && in.longestPause >= a.LongPause.Milliseconds() {
		sig += a.LongPauseWeight
	}
	if s.EditCount == 0 {
		long := (a.NoEditMinChars > 0 && in.textLength > a.NoEditMinChars) ||
			(a.NoEditMinWords > 0 && in.words > a.NoEditMinWords)
		if long {
			sig += a.NoEditWeight
		}
	}
	// Weights are hundredths; rounding keeps badge thresholds exact.
	sig = math.Round(sig*100) / 100
	return math.Min(math.Max(sig, 0), 1)
}
