package keystroke

import (
	"errors"
	"fmt"
)

// MaxPasteLength is the largest paste the editing surface accepts, in
// characters. Larger pastes are refused before they reach a recorder.
const MaxPasteLength = 1000

// ErrPasteTooLarge is returned by CheckPaste for a paste over the limit.
var ErrPasteTooLarge = errors.New("keystroke: paste exceeds maximum length")

// CheckPaste applies the paste-size policy. A non-positive limit means
// MaxPasteLength. A rejected paste must not be recorded at all.
func CheckPaste(pasted string, limit int) error {
	if limit <= 0 {
		limit = MaxPasteLength
	}
	if n := TextLength(pasted); n > limit {
		return fmt.Errorf("%w: %d characters (limit %d)", ErrPasteTooLarge, n, limit)
	}
	return nil
}
