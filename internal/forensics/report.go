package forensics

import (
	"fmt"
	"io"
	"strings"
	"time"

	"realcv/internal/tracking"
)

// PrintReport writes a formatted authorship report for a session and its
// metrics to w.
func PrintReport(w io.Writer, s *tracking.WritingSession, m *TypingMetrics) {
	if s == nil {
		fmt.Fprintln(w, "No session data available")
		return
	}

	// Header
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "                      WRITING AUTHENTICITY REPORT")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)

	// Session info
	if s.ID != "" {
		fmt.Fprintf(w, "Session:        %s\n", s.ID)
	}
	if s.StartTime > 0 {
		fmt.Fprintf(w, "Started:        %s\n", time.UnixMilli(s.StartTime).UTC().Format(time.RFC3339))
	}
	if s.Sealed() {
		fmt.Fprintf(w, "Sealed:         %s\n", time.UnixMilli(s.EndTime).UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "Session Span:   %s\n", FormatDuration(time.Duration(s.EndTime-s.StartTime)*time.Millisecond))
	}
	fmt.Fprintf(w, "Typing Time:    %s\n", FormatDuration(s.TypingTime()))
	fmt.Fprintf(w, "Words:          %d\n", s.WordCount)
	fmt.Fprintln(w)

	// Activity
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintln(w, "ACTIVITY")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Keystrokes:     %d\n", s.KeystrokeCount)
	fmt.Fprintf(w, "Edits:          %d\n", s.EditCount)
	fmt.Fprintf(w, "Backspaces:     %d\n", s.BackspaceCount)
	fmt.Fprintf(w, "Deletions:      %d\n", s.DeletionCount)
	fmt.Fprintf(w, "Paste Events:   %d (%d large)\n", len(s.PasteEvents), s.LargePasteCount())
	fmt.Fprintf(w, "Tab Switches:   %d\n", s.TabSwitches)
	fmt.Fprintf(w, "Average Pause:  %.0f ms\n", s.AveragePauseMs)
	fmt.Fprintf(w, "Longest Pause:  %s\n", FormatDuration(time.Duration(s.LongestPauseMs)*time.Millisecond))
	fmt.Fprintln(w)

	tier := Classify(s)
	fmt.Fprintf(w, "Trust Tier:     %s\n", tier.CertificateLabel())
	fmt.Fprintln(w)

	if m != nil {
		fmt.Fprintln(w, strings.Repeat("-", 72))
		fmt.Fprintln(w, "SCORES")
		fmt.Fprintln(w, strings.Repeat("-", 72))
		fmt.Fprintln(w)

		fmt.Fprintf(w, "Human Likelihood:   %3d  %s\n",
			m.HumanLikelihood,
			FormatMetricBar(float64(m.HumanLikelihood), 0, 100, 20))
		fmt.Fprintf(w, "AI Signature:      %.2f  %s\n",
			m.AISignatureScore,
			FormatMetricBar(m.AISignatureScore, 0, 1, 20))
		fmt.Fprintf(w, "Effort:            %s\n", m.EffortScore)
		fmt.Fprintln(w)

		if len(m.Flags) > 0 {
			fmt.Fprintln(w, "Flags:")
			for i, f := range m.Flags {
				fmt.Fprintf(w, "%d. [ ! ] %s\n", i+1, f)
			}
			fmt.Fprintln(w)
		}

		labels := make([]string, 0, 3)
		for _, b := range Badges(m) {
			labels = append(labels, fmt.Sprintf("%s %s", categoryMarker(b.Category), b.Label))
		}
		fmt.Fprintln(w, strings.Repeat("=", 72))
		fmt.Fprintf(w, "ASSESSMENT: %s\n", strings.Join(labels, "  "))
		fmt.Fprintln(w, strings.Repeat("=", 72))
		return
	}

	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "ASSESSMENT: %s\n", tier.Label())
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

// FormatDuration produces a human-readable duration (e.g., "16 minutes, 0 seconds").
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "0 seconds"
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		if hours == 1 {
			return fmt.Sprintf("%d hour, %d minutes", hours, minutes)
		}
		return fmt.Sprintf("%d hours, %d minutes", hours, minutes)
	}
	if minutes > 0 {
		if minutes == 1 {
			return fmt.Sprintf("%d minute, %d seconds", minutes, seconds)
		}
		return fmt.Sprintf("%d minutes, %d seconds", minutes, seconds)
	}
	if seconds == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", seconds)
}

// FormatMetricBar produces an ASCII bar for a value between lo and hi.
func FormatMetricBar(value, lo, hi float64, width int) string {
	if width <= 0 {
		return ""
	}
	if hi <= lo {
		return strings.Repeat("-", width)
	}

	normalized := (value - lo) / (hi - lo)
	normalized = min(max(normalized, 0), 1)
	filled := min(int(normalized*float64(width)), width)

	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// categoryMarker returns a visual marker for a badge category.
func categoryMarker(c Category) string {
	switch c {
	case CategoryDanger:
		return "[!!!]"
	case CategoryWarning:
		return "[ ! ]"
	case CategoryInfo:
		return "[ i ]"
	default:
		return "[ok ]"
	}
}
