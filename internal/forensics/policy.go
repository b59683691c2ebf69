package forensics

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Preset names.
const (
	PresetSelfAuthored       = "self-authored"
	PresetThirdPartyResponse = "third-party-response"
)

// Policy holds every threshold and weight the scorer uses. A penalty, bonus
// or weight of zero disables its rule.
type Policy struct {
	Name     string `json:"name"`
	Baseline int    `json:"baseline"`

	// Pasting is suspicious when there is at least one paste and either the
	// paste count exceeds PasteCountRatio x keystrokes or the pasted
	// characters exceed PasteVolumeRatio x keystrokes.
	PasteCountRatio  float64 `json:"pasteCountRatio"`
	PasteVolumeRatio float64 `json:"pasteVolumeRatio"`
	PastePenalty     int     `json:"pastePenalty"`
	PasteFlag        string  `json:"pasteFlag"`

	MinKeystrokeDensity float64 `json:"minKeystrokeDensity"`
	DensityPenalty      int     `json:"densityPenalty"`

	// Words per minute over active typing time, with typing time floored at
	// MinTypingMinutes.
	MaxWPM           float64 `json:"maxWpm"`
	MinTypingMinutes float64 `json:"minTypingMinutes"`
	WPMPenalty       int     `json:"wpmPenalty"`

	LongPause        time.Duration `json:"longPause"`
	LongPausePenalty int           `json:"longPausePenalty"`

	// A response longer than NoEditMinWords with no edits and no backspaces.
	NoEditMinWords int `json:"noEditMinWords"`
	NoEditPenalty  int `json:"noEditPenalty"`

	// (edits + backspaces) / keystrokes strictly inside the range earns the bonus.
	EditRatioLow   float64 `json:"editRatioLow"`
	EditRatioHigh  float64 `json:"editRatioHigh"`
	EditRatioBonus int     `json:"editRatioBonus"`

	MaxTabSwitches   int `json:"maxTabSwitches"`
	TabSwitchPenalty int `json:"tabSwitchPenalty"`

	Effort EffortPolicy      `json:"effort"`
	AI     AISignaturePolicy `json:"ai"`
}

// EffortPolicy sets the effort thresholds. All comparisons are strict. High
// requires every enabled condition; Medium requires any. A zero word
// threshold is ignored.
type EffortPolicy struct {
	HighMinutes   float64 `json:"highMinutes"`
	HighEdits     int     `json:"highEdits"`
	HighWords     int     `json:"highWords"`
	MediumMinutes float64 `json:"mediumMinutes"`
	MediumEdits   int     `json:"mediumEdits"`
	MediumWords   int     `json:"mediumWords"`
}

// AISignaturePolicy sets the AI signature weights and their triggers.
type AISignaturePolicy struct {
	PasteWeight float64 `json:"pasteWeight"`

	FastPause       time.Duration `json:"fastPause"`
	FastPauseWeight float64       `json:"fastPauseWeight"`

	FastWPM       float64 `json:"fastWpm"`
	FastWPMWeight float64 `json:"fastWpmWeight"`

	LongPause       time.Duration `json:"longPause"`
	LongPauseWeight float64       `json:"longPauseWeight"`

	// No edits on text longer than NoEditMinChars characters or
	// NoEditMinWords words, whichever is set.
	NoEditMinChars int     `json:"noEditMinChars"`
	NoEditMinWords int     `json:"noEditMinWords"`
	NoEditWeight   float64 `json:"noEditWeight"`
}

// SelfAuthored is the policy for a candidate scoring their own resume.
func SelfAuthored() Policy {
	return Policy{
		Name:                PresetSelfAuthored,
		Baseline:            100,
		PasteCountRatio:     0.1,
		PasteVolumeRatio:    1.0,
		PastePenalty:        30,
		PasteFlag:           "Excessive pasting detected",
		MinKeystrokeDensity: 1.5,
		DensityPenalty:      20,
		LongPause:           30 * time.Second,
		LongPausePenalty:    25,
		EditRatioLow:        0.05,
		EditRatioHigh:       0.3,
		EditRatioBonus:      10,
		MaxTabSwitches:      2,
		TabSwitchPenalty:    15,
		Effort: EffortPolicy{
			HighMinutes:   3,
			HighEdits:     5,
			MediumMinutes: 1,
			MediumEdits:   2,
		},
		AI: AISignaturePolicy{
			PasteWeight:     0.3,
			FastPause:       100 * time.Millisecond,
			FastPauseWeight: 0.2,
			LongPause:       20 * time.Second,
			LongPauseWeight: 0.4,
			NoEditMinChars:  50,
			NoEditWeight:    0.3,
		},
	}
}

// ThirdPartyResponse is the policy for a candidate answering an employer's
// question. It is always applied server-side.
func ThirdPartyResponse() Policy {
	return Policy{
		Name:             PresetThirdPartyResponse,
		Baseline:         85,
		PasteCountRatio:  0.1,
		PasteVolumeRatio: 1.0,
		PastePenalty:     25,
		PasteFlag:        "High paste-to-keystroke ratio",
		MaxWPM:           80,
		MinTypingMinutes: 0.1,
		WPMPenalty:       15,
		NoEditMinWords:   30,
		NoEditPenalty:    20,
		EditRatioLow:     0.05,
		EditRatioHigh:    0.25,
		EditRatioBonus:   5,
		Effort: EffortPolicy{
			HighMinutes:   2,
			HighEdits:     3,
			HighWords:     50,
			MediumMinutes: 1,
			MediumEdits:   1,
			MediumWords:   25,
		},
		AI: AISignaturePolicy{
			PasteWeight:     0.3,
			FastWPM:         60,
			FastWPMWeight:   0.2,
			LongPause:       30 * time.Second,
			LongPauseWeight: 0.3,
			NoEditMinWords:  20,
			NoEditWeight:    0.2,
		},
	}
}

var presets = map[string]func() Policy{
	PresetSelfAuthored:       SelfAuthored,
	PresetThirdPartyResponse: ThirdPartyResponse,
}

// PolicyByName returns the named preset. Names are case-insensitive and
// accept underscores for dashes.
func PolicyByName(name string) (Policy, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	if f, ok := presets[key]; ok {
		return f(), nil
	}
	return Policy{}, fmt.Errorf("unknown scoring preset %q (want one of %s)",
		name, strings.Join(PresetNames(), ", "))
}

// PresetNames lists the preset names in lexical order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
