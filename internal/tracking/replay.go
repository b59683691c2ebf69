package tracking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"realcv/internal/keystroke"
)

// Editor actions understood by Replay.
const (
	ActionKey   = "key"
	ActionPaste = "paste"
	ActionTab   = "tab"
)

// Action is one editor notification as captured by a client, with the
// editor text right after it took effect.
type Action struct {
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
	Key       string `json:"key,omitempty"`
	Text      string `json:"text"`
	Pasted    string `json:"pasted,omitempty"`
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Applied        int    `json:"applied"`
	RejectedPastes int    `json:"rejectedPastes"`
	FinalText      string `json:"-"`
}

// DecodeActions parses a JSON array of actions.
func DecodeActions(data []byte) ([]Action, error) {
	var actions []Action
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&actions); err != nil {
		return nil, fmt.Errorf("decode actions: %w", err)
	}
	return actions, nil
}

// Replay feeds actions to r in order. The clock is moved to each action's
// timestamp first, so idle and tick timers fire as they did live. Pastes
// over maxPaste characters are rejected before they reach the recorder,
// and the editor text is left as it was before the paste.
func Replay(r *Recorder, clock *ManualClock, actions []Action, maxPaste int) (ReplayResult, error) {
	var res ReplayResult
	var last int64
	for i, a := range actions {
		if a.Timestamp < last {
			return res, fmt.Errorf("action %d: timestamp %d before %d", i, a.Timestamp, last)
		}
		last = a.Timestamp
		clock.AdvanceTo(time.UnixMilli(a.Timestamp))

		switch a.Type {
		case ActionKey:
			r.RecordKeystroke(a.Key, a.Text)
			res.FinalText = a.Text
		case ActionPaste:
			if err := keystroke.CheckPaste(a.Pasted, maxPaste); err != nil {
				res.RejectedPastes++
				continue
			}
			r.RecordPaste(a.Pasted, a.Text)
			res.FinalText = a.Text
		case ActionTab:
			r.RecordTabSwitch()
		default:
			return res, fmt.Errorf("action %d: unknown type %q", i, a.Type)
		}
		res.Applied++
	}
	return res, nil
}
