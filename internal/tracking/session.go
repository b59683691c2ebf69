package tracking

import (
	"math"
	"time"

	"realcv/internal/keystroke"
)

const (
	// PauseNoiseFloor is the largest inter-event gap still treated as
	// keystroke jitter. Only gaps strictly above it count as pauses.
	PauseNoiseFloor = 50 * time.Millisecond

	// LargePasteThreshold is the paste size, in characters, above which a
	// paste counts as large.
	LargePasteThreshold = 100
)

// PasteEvent records one accepted paste. TextLength is the size of the
// pasted fragment, not of the whole document.
type PasteEvent struct {
	Timestamp  int64 `json:"timestamp"`
	TextLength int   `json:"textLength"`
}

// WritingSession is the aggregated state of one authorship attempt: one
// resume or one question response. Times are epoch milliseconds.
//
// A session is sealed once EndTime is set. Sealed sessions are the only
// valid input to scoring.
type WritingSession struct {
	ID              string                 `json:"id"`
	StartTime       int64                  `json:"startTime"`
	EndTime         int64                  `json:"endTime,omitempty"`
	KeystrokeCount  int                    `json:"keystrokeCount"`
	EditCount       int                    `json:"editCount"`
	BackspaceCount  int                    `json:"backspaceCount"`
	DeletionCount   int                    `json:"deletionCount"`
	PasteEvents     []PasteEvent           `json:"pasteEvents"`
	TabSwitches     int                    `json:"tabSwitches"`
	TotalTypingTime int64                  `json:"totalTypingTime"`
	AveragePauseMs  float64                `json:"averagePauseMs"`
	LongestPauseMs  int64                  `json:"longestPauseMs"`
	TextLength      int                    `json:"textLength"`
	FinalText       string                 `json:"finalText"`
	WordCount       int                    `json:"wordCount"`
	Events          []keystroke.InputEvent `json:"events"`

	// ResumedAt holds the instants at which recording restarted after a
	// reload or a stop. Gaps spanning one are not pauses.
	ResumedAt []int64 `json:"resumedAt,omitempty"`
}

// NewSession returns an empty session that starts at the given instant.
func NewSession(id string, start time.Time) *WritingSession {
	return &WritingSession{
		ID:          id,
		StartTime:   start.UnixMilli(),
		PasteEvents: []PasteEvent{},
		Events:      []keystroke.InputEvent{},
	}
}

// Sealed reports whether the session has been finalized.
func (s *WritingSession) Sealed() bool {
	return s.EndTime != 0
}

// TypingTime returns the accumulated active typing time.
func (s *WritingSession) TypingTime() time.Duration {
	return time.Duration(s.TotalTypingTime) * time.Millisecond
}

// Duration returns the wall-clock span of the session. For an unsealed
// session it is measured up to now.
func (s *WritingSession) Duration(now time.Time) time.Duration {
	end := s.EndTime
	if end == 0 {
		end = now.UnixMilli()
	}
	if end < s.StartTime {
		return 0
	}
	return time.Duration(end-s.StartTime) * time.Millisecond
}

// TypingMinutes returns active typing time in whole minutes, rounded to the
// nearest minute. Tiers and certificate summaries both use this figure.
func (s *WritingSession) TypingMinutes() int {
	return RoundMinutes(s.TotalTypingTime)
}

// RoundMinutes converts milliseconds to the nearest whole minute. Half a
// minute rounds up; negative input is zero.
func RoundMinutes(ms int64) int {
	if ms <= 0 {
		return 0
	}
	return int(math.Round(float64(ms) / 60_000))
}

// LargePasteCount returns the number of pastes over LargePasteThreshold.
func (s *WritingSession) LargePasteCount() int {
	n := 0
	for _, p := range s.PasteEvents {
		if p.TextLength > LargePasteThreshold {
			n++
		}
	}
	return n
}

// PastedChars returns the total number of pasted characters.
func (s *WritingSession) PastedChars() int {
	total := 0
	for _, p := range s.PasteEvents {
		total += p.TextLength
	}
	return total
}

// Clone returns a deep copy of the session.
func (s *WritingSession) Clone() *WritingSession {
	if s == nil {
		return nil
	}
	c := *s
	c.PasteEvents = append(make([]PasteEvent, 0, len(s.PasteEvents)), s.PasteEvents...)
	c.Events = append(make([]keystroke.InputEvent, 0, len(s.Events)), s.Events...)
	if s.ResumedAt != nil {
		c.ResumedAt = append(make([]int64, 0, len(s.ResumedAt)), s.ResumedAt...)
	}
	return &c
}

// Seal finalizes the session at end with the given final text and computes
// pause statistics. Active typing time is clamped to the session span.
func (s *WritingSession) Seal(end time.Time, finalText string) {
	s.EndTime = end.UnixMilli()
	if s.EndTime < s.StartTime {
		s.EndTime = s.StartTime
	}
	s.FinalText = finalText
	s.TextLength = keystroke.TextLength(finalText)
	s.WordCount = keystroke.WordCount(finalText)
	s.updatePauseStats()
	s.clamp()
}

// updatePauseStats recomputes pause statistics from the event log.
// Sessions with fewer than two keystrokes have no meaningful pauses.
func (s *WritingSession) updatePauseStats() {
	if s.KeystrokeCount < 2 {
		s.AveragePauseMs = 0
		s.LongestPauseMs = 0
		return
	}
	stats := ComputePauseStats(s.Events, s.ResumedAt...)
	s.AveragePauseMs = stats.AverageMs
	s.LongestPauseMs = stats.LongestMs
}

// clamp zeroes negative counters and caps typing time at the session span.
func (s *WritingSession) clamp() {
	s.KeystrokeCount = max(s.KeystrokeCount, 0)
	s.EditCount = max(s.EditCount, 0)
	s.BackspaceCount = max(s.BackspaceCount, 0)
	s.DeletionCount = max(s.DeletionCount, 0)
	s.TabSwitches = max(s.TabSwitches, 0)
	s.TextLength = max(s.TextLength, 0)
	s.WordCount = max(s.WordCount, 0)
	s.TotalTypingTime = max(s.TotalTypingTime, 0)
	s.LongestPauseMs = max(s.LongestPauseMs, 0)
	if s.AveragePauseMs < 0 {
		s.AveragePauseMs = 0
	}
	if s.EndTime != 0 {
		s.TotalTypingTime = min(s.TotalTypingTime, s.EndTime-s.StartTime)
	}
	for i := range s.PasteEvents {
		s.PasteEvents[i].TextLength = max(s.PasteEvents[i].TextLength, 0)
	}
}

// PauseStats summarizes the gaps between adjacent events.
type PauseStats struct {
	AverageMs float64
	LongestMs int64
	// Count is the number of gaps above the noise floor.
	Count int
}

// ComputePauseStats walks the event log once. Gaps at or below
// PauseNoiseFloor are discarded, as are gaps that contain one of the resume
// instants; the rest are averaged.
func ComputePauseStats(events []keystroke.InputEvent, resumes ...int64) PauseStats {
	var stats PauseStats
	if len(events) < 2 {
		return stats
	}
	floor := PauseNoiseFloor.Milliseconds()
	var sum int64
	for i := 1; i < len(events); i++ {
		gap := events[i].Timestamp - events[i-1].Timestamp
		if gap <= floor || spansResume(events[i-1].Timestamp, events[i].Timestamp, resumes) {
			continue
		}
		sum += gap
		stats.Count++
		if gap > stats.LongestMs {
			stats.LongestMs = gap
		}
	}
	if stats.Count > 0 {
		stats.AverageMs = float64(sum) / float64(stats.Count)
	}
	return stats
}

func spansResume(from, to int64, resumes []int64) bool {
	for _, r := range resumes {
		if r >= from && r <= to {
			return true
		}
	}
	return false
}
