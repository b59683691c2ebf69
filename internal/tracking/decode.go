package tracking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"realcv/internal/keystroke"
)

// wireSession accepts both the current session layout and the shapes
// written by older clients: "keystrokes" as an event list or a bare count,
// "edits"/"backspaces"/"deletions" counters, and "pasteEvents" as a count.
type wireSession struct {
	ID              string          `json:"id"`
	QuestionID      string          `json:"questionId"`
	StartTime       float64         `json:"startTime"`
	EndTime         float64         `json:"endTime"`
	KeystrokeCount  *float64        `json:"keystrokeCount"`
	Keystrokes      json.RawMessage `json:"keystrokes"`
	EditCount       *float64        `json:"editCount"`
	Edits           *float64        `json:"edits"`
	BackspaceCount  *float64        `json:"backspaceCount"`
	Backspaces      *float64        `json:"backspaces"`
	DeletionCount   *float64        `json:"deletionCount"`
	Deletions       *float64        `json:"deletions"`
	PasteEvents     json.RawMessage `json:"pasteEvents"`
	TabSwitches     float64         `json:"tabSwitches"`
	TotalTypingTime float64         `json:"totalTypingTime"`
	AveragePauseMs  float64         `json:"averagePauseMs"`
	LongestPauseMs  float64         `json:"longestPauseMs"`
	TextLength      float64         `json:"textLength"`
	FinalText       string          `json:"finalText"`
	WordCount       float64         `json:"wordCount"`
	Events          []wireEvent     `json:"events"`
	ResumedAt       []float64       `json:"resumedAt"`
}

type wireEvent struct {
	Timestamp  float64 `json:"timestamp"`
	Kind       string  `json:"kind"`
	Type       string  `json:"type"`
	Key        string  `json:"key"`
	TextLength float64 `json:"textLength"`
}

// DecodeSession parses a persisted or transmitted session. Missing fields
// default to zero, negative counters are clamped and events with an unknown
// kind are dropped; the only failure is input that is not a JSON object.
func DecodeSession(data []byte) (*WritingSession, error) {
	var w wireSession
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	s := &WritingSession{
		ID:              w.ID,
		StartTime:       toInt64(w.StartTime),
		EndTime:         toInt64(w.EndTime),
		TabSwitches:     toInt(w.TabSwitches),
		TotalTypingTime: toInt64(w.TotalTypingTime),
		AveragePauseMs:  finite(w.AveragePauseMs),
		LongestPauseMs:  toInt64(w.LongestPauseMs),
		TextLength:      toInt(w.TextLength),
		FinalText:       w.FinalText,
		WordCount:       toInt(w.WordCount),
		PasteEvents:     []PasteEvent{},
		Events:          []keystroke.InputEvent{},
	}
	if s.ID == "" {
		s.ID = w.QuestionID
	}

	for _, ev := range w.Events {
		if e, ok := ev.event(); ok {
			s.Events = append(s.Events, e)
		}
	}
	for _, r := range w.ResumedAt {
		if ms := toInt64(r); ms > 0 {
			s.ResumedAt = append(s.ResumedAt, ms)
		}
	}

	// Legacy "keystrokes" is either the event log itself or a bare count.
	legacyCount := -1
	if raw := bytes.TrimSpace(w.Keystrokes); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		switch raw[0] {
		case '[':
			var evs []wireEvent
			if err := json.Unmarshal(raw, &evs); err == nil && len(s.Events) == 0 {
				for _, ev := range evs {
					if e, ok := ev.event(); ok {
						s.Events = append(s.Events, e)
					}
				}
				legacyCount = countKeystrokes(s.Events)
			}
		default:
			var n float64
			if err := json.Unmarshal(raw, &n); err == nil {
				legacyCount = toInt(n)
			}
		}
	}

	s.KeystrokeCount = firstCount(w.KeystrokeCount, nil)
	if w.KeystrokeCount == nil && legacyCount >= 0 {
		s.KeystrokeCount = legacyCount
	}
	s.EditCount = firstCount(w.EditCount, w.Edits)
	s.BackspaceCount = firstCount(w.BackspaceCount, w.Backspaces)
	s.DeletionCount = firstCount(w.DeletionCount, w.Deletions)

	if raw := bytes.TrimSpace(w.PasteEvents); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		switch raw[0] {
		case '[':
			var pastes []struct {
				Timestamp  float64 `json:"timestamp"`
				TextLength float64 `json:"textLength"`
			}
			if err := json.Unmarshal(raw, &pastes); err == nil {
				for _, p := range pastes {
					s.PasteEvents = append(s.PasteEvents, PasteEvent{
						Timestamp:  toInt64(p.Timestamp),
						TextLength: toInt(p.TextLength),
					})
				}
			}
		default:
			// A bare count carries no sizes; rebuild entries from the log
			// where possible so the count is preserved.
			var n float64
			if err := json.Unmarshal(raw, &n); err == nil {
				s.PasteEvents = legacyPastes(s.Events, toInt(n))
			}
		}
	}

	s.clamp()
	return s, nil
}

// event converts a wire event, reporting false for unknown kinds.
func (ev wireEvent) event() (keystroke.InputEvent, bool) {
	name := ev.Kind
	if name == "" {
		name = ev.Type
	}
	kind, err := keystroke.ParseEventKind(name)
	if err != nil {
		return keystroke.InputEvent{}, false
	}
	// Older clients logged tab switches as edits with a marker key.
	if strings.EqualFold(ev.Key, "TAB_SWITCH") {
		kind = keystroke.KindTabSwitch
	}
	return keystroke.InputEvent{
		Timestamp:  toInt64(ev.Timestamp),
		Kind:       kind,
		TextLength: toInt(ev.TextLength),
	}, true
}

// legacyPastes builds n paste entries with unknown sizes, taking timestamps
// from paste events in the log.
func legacyPastes(events []keystroke.InputEvent, n int) []PasteEvent {
	pastes := make([]PasteEvent, 0, max(n, 0))
	for _, e := range events {
		if len(pastes) == n {
			break
		}
		if e.Kind == keystroke.KindPaste {
			pastes = append(pastes, PasteEvent{Timestamp: e.Timestamp})
		}
	}
	for len(pastes) < n {
		pastes = append(pastes, PasteEvent{})
	}
	return pastes
}

func countKeystrokes(events []keystroke.InputEvent) int {
	n := 0
	for _, e := range events {
		if e.Kind.IsKeystroke() {
			n++
		}
	}
	return n
}

func firstCount(primary, legacy *float64) int {
	switch {
	case primary != nil:
		return toInt(*primary)
	case legacy != nil:
		return toInt(*legacy)
	default:
		return 0
	}
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

func toInt64(f float64) int64 {
	f = finite(f)
	if f > math.MaxInt64/2 {
		return math.MaxInt64 / 2
	}
	return int64(f)
}

func toInt(f float64) int {
	f = finite(f)
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}
