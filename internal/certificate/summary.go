// Package certificate renders and signs human-authorship certificates.
//
// Every export target (PDF, Word, TXT, HTML and the public verification
// page) takes its numbers from Summarize and its tier from forensics.Classify,
// so no two surfaces can disagree about a session.
package certificate

import (
	"fmt"

	"realcv/internal/tracking"
)

// Summary holds the figures printed on a certificate.
type Summary struct {
	TypingMinutes   int `json:"typingMinutes"`
	SessionMinutes  int `json:"sessionMinutes"`
	EditCount       int `json:"editCount"`
	PasteCount      int `json:"pasteCount"`
	LargePasteCount int `json:"largePasteCount"`
	SmallPasteCount int `json:"smallPasteCount"`
	KeystrokeCount  int `json:"keystrokeCount"`
	WordCount       int `json:"wordCount"`
}

// Summarize derives the certificate figures from one session. Minutes are
// rounded to the nearest whole minute, the same figure forensics.Classify
// uses; session minutes are zero until the session is sealed.
func Summarize(s *tracking.WritingSession) Summary {
	if s == nil {
		return Summary{}
	}
	large := s.LargePasteCount()
	sum := Summary{
		TypingMinutes:   s.TypingMinutes(),
		EditCount:       s.EditCount,
		PasteCount:      len(s.PasteEvents),
		LargePasteCount: large,
		SmallPasteCount: len(s.PasteEvents) - large,
		KeystrokeCount:  s.KeystrokeCount,
		WordCount:       s.WordCount,
	}
	if s.Sealed() {
		sum.SessionMinutes = tracking.RoundMinutes(s.EndTime - s.StartTime)
	}
	return sum
}

// Line returns the one-line summary, for example
// "Written in 16 minutes with 4 revisions, 1 paste events (0 large)".
func (s Summary) Line() string {
	return fmt.Sprintf("Written in %d minutes with %d revisions, %d paste events (%d large)",
		s.TypingMinutes, s.EditCount, s.PasteCount, s.LargePasteCount)
}

// Bullets returns the statistics block used by the long-form certificate.
func (s Summary) Bullets() []string {
	return []string{
		fmt.Sprintf("Written in %d minutes of active typing", s.TypingMinutes),
		fmt.Sprintf("%d revisions made", s.EditCount),
		fmt.Sprintf("%d paste events", s.PasteCount),
		fmt.Sprintf("%d large paste events (>%d chars)", s.LargePasteCount, tracking.LargePasteThreshold),
		fmt.Sprintf("%d total keystrokes", s.KeystrokeCount),
	}
}
