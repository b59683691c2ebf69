package tracking

import (
	"time"

	"realcv/internal/keystroke"
)

// Normalize prepares a client-supplied session for server-side scoring and
// returns a sealed copy. The event log is authoritative wherever it proves
// something: keystroke totals come from the log, derived counters may not
// fall below what the log shows nor exceed the keystroke total, and pause
// statistics are recomputed. When responseText is non-empty it replaces the
// reported final text. A session that carries no end time at all is sealed
// at received.
func Normalize(s *WritingSession, responseText string, received time.Time) *WritingSession {
	n := s.Clone()
	if n == nil {
		n = &WritingSession{}
	}
	if n.PasteEvents == nil {
		n.PasteEvents = []PasteEvent{}
	}
	if n.Events == nil {
		n.Events = []keystroke.InputEvent{}
	}

	if len(n.Events) > 0 {
		var keys, edits, backspaces, deletes, tabs, pastes int
		var pasteTimes []int64
		for _, e := range n.Events {
			switch e.Kind {
			case keystroke.KindKeyDown:
				keys++
			case keystroke.KindBackspace:
				keys++
				backspaces++
			case keystroke.KindDelete:
				keys++
				deletes++
			case keystroke.KindEdit:
				keys++
				edits++
			case keystroke.KindPaste:
				pastes++
				pasteTimes = append(pasteTimes, e.Timestamp)
			case keystroke.KindTabSwitch:
				tabs++
			case keystroke.KindKeyUp:
			}
		}
		n.KeystrokeCount = keys
		n.EditCount = bounded(n.EditCount, edits, keys)
		n.BackspaceCount = bounded(n.BackspaceCount, backspaces, keys)
		n.DeletionCount = bounded(n.DeletionCount, deletes, keys)
		n.TabSwitches = max(n.TabSwitches, tabs)
		for i := len(n.PasteEvents); i < pastes; i++ {
			n.PasteEvents = append(n.PasteEvents, PasteEvent{Timestamp: pasteTimes[i]})
		}

		first, last := n.Events[0].Timestamp, n.Events[len(n.Events)-1].Timestamp
		if n.StartTime == 0 || n.StartTime > first {
			n.StartTime = first
		}
		if n.EndTime == 0 || n.EndTime < last {
			n.EndTime = last
		}
	}

	if responseText != "" {
		n.FinalText = responseText
	}
	if n.FinalText != "" {
		n.TextLength = keystroke.TextLength(n.FinalText)
		n.WordCount = keystroke.WordCount(n.FinalText)
	}

	if n.EndTime == 0 && n.StartTime > 0 {
		n.EndTime = n.StartTime + max(n.TotalTypingTime, 0)
	}
	if n.EndTime == 0 {
		n.EndTime = received.UnixMilli()
	}
	if n.StartTime == 0 || n.StartTime > n.EndTime {
		n.StartTime = n.EndTime - max(n.TotalTypingTime, 0)
	}
	if len(n.Events) > 0 {
		n.updatePauseStats()
	}
	n.clamp()
	return n
}

// bounded returns reported raised to at least proven and capped at limit.
func bounded(reported, proven, limit int) int {
	v := max(reported, proven)
	return min(v, limit)
}
