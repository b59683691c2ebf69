// Package keystroke normalizes raw editing-surface input into typed events.
//
// The package never stores which characters were typed. A raw key identifier
// is consulted only to classify the event and is dropped afterwards; what is
// kept is the event kind, its timestamp and the length of the text after it.
package keystroke

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// EventKind is the closed set of input event categories.
type EventKind uint8

const (
	KindKeyDown EventKind = iota + 1
	KindKeyUp
	KindPaste
	KindBackspace
	KindDelete
	KindEdit
	KindTabSwitch
)

var kindNames = map[EventKind]string{
	KindKeyDown:   "keydown",
	KindKeyUp:     "keyup",
	KindPaste:     "paste",
	KindBackspace: "backspace",
	KindDelete:    "delete",
	KindEdit:      "edit",
	KindTabSwitch: "tab-switch",
}

// Kinds returns every event kind in declaration order.
func Kinds() []EventKind {
	return []EventKind{
		KindKeyDown, KindKeyUp, KindPaste, KindBackspace,
		KindDelete, KindEdit, KindTabSwitch,
	}
}

func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// Valid reports whether k is one of the declared kinds.
func (k EventKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// IsKeystroke reports whether events of this kind come from a key press
// observed on the editing surface. Pastes and tab switches are not keystrokes.
func (k EventKind) IsKeystroke() bool {
	switch k {
	case KindKeyDown, KindBackspace, KindDelete, KindEdit:
		return true
	case KindKeyUp, KindPaste, KindTabSwitch:
		return false
	default:
		return false
	}
}

// ParseEventKind parses the wire name of an event kind.
func ParseEventKind(s string) (EventKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	// Older clients wrote the synthetic tab switch as "tab_switch".
	if name == "tab_switch" || name == "tabswitch" {
		name = "tab-switch"
	}
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("keystroke: unknown event kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("keystroke: cannot marshal invalid event kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EventKind) UnmarshalText(text []byte) error {
	parsed, err := ParseEventKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// InputEvent is one observed user action. Events are immutable once created.
type InputEvent struct {
	// Timestamp is wall-clock epoch milliseconds.
	Timestamp int64     `json:"timestamp"`
	Kind      EventKind `json:"kind"`
	// TextLength is the length of the observed text right after the event.
	TextLength int `json:"textLength"`
	// Key is the raw key identifier. It is used for classification only
	// and is never serialized.
	Key string `json:"-"`
}

// Raw key identifiers that carry meaning for classification.
const (
	KeyBackspace = "Backspace"
	KeyDelete    = "Delete"
)

// Classification is the outcome of classifying one key press.
type Classification struct {
	Kind      EventKind
	Backspace bool
	Delete    bool
	// Shrank is set when the text got shorter than the previously observed
	// text. Such a key press counts as an edit regardless of the key.
	Shrank bool
}

// Classify maps a raw key and the text lengths before and after the key
// press to an event kind.
func Classify(key string, prevLen, curLen int) Classification {
	c := Classification{Kind: KindKeyDown}
	switch key {
	case KeyBackspace:
		c.Kind = KindBackspace
		c.Backspace = true
	case KeyDelete:
		c.Kind = KindDelete
		c.Delete = true
	}
	if prevLen > 0 && curLen < prevLen {
		c.Kind = KindEdit
		c.Shrank = true
	}
	return c
}

// TextLength measures text the way every component of the engine does:
// in Unicode code points.
func TextLength(s string) int {
	return utf8.RuneCountInString(s)
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
