// Package tracking records writing sessions.
//
// This package ties together:
//   - A per-context Recorder that turns editor events into a WritingSession
//   - Active typing time accounting (idle debounce plus a periodic tick)
//   - Pause statistics computed once, when the session is sealed
//   - Session persistence after every mutation, with resume or start-fresh
//   - Decoding and server-side normalization of client-supplied sessions
//
// No typed content is retained while recording; only counts, lengths and
// timestamps. The final text is attached when the session is sealed.
package tracking

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"realcv/internal/keystroke"
)

// Defaults for typing time accounting.
const (
	DefaultIdleTimeout  = 2 * time.Second
	DefaultTickInterval = time.Second
)

// Config configures a Recorder.
type Config struct {
	// ID identifies the writing context (one resume, one question response).
	// A random id is generated when empty.
	ID string

	// Store persists the session after every mutation. Optional.
	Store Store

	// StartFresh discards any persisted session for ID instead of resuming it.
	StartFresh bool

	// Clock drives timestamps and timers. Defaults to SystemClock.
	Clock Clock

	// Logger receives lifecycle and persistence messages.
	Logger *slog.Logger

	// IdleTimeout closes an open typing interval after this much silence.
	IdleTimeout time.Duration

	// TickInterval is how often an open interval is folded into
	// TotalTypingTime for live display.
	TickInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Clock == nil {
		c.Clock = SystemClock()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
}

// Recorder is the single writer of one WritingSession. All recording
// operations are silent no-ops while tracking is inactive so that event
// ordering races in the editor can never fail.
type Recorder struct {
	mu  sync.Mutex
	cfg Config
	log *slog.Logger

	session  *WritingSession
	tracking bool
	prevLen  int

	// Typing interval accounting. closed holds the sum of finished
	// intervals; openedAt is valid while typing is set.
	typing   bool
	openedAt time.Time
	closed   time.Duration

	// Timer generations invalidate callbacks of cancelled timers that
	// already fired and are waiting on mu.
	idle    Timer
	idleGen uint64
	tick    Timer
	tickGen uint64
}

// NewRecorder creates a recorder for cfg.ID, resuming the persisted session
// unless cfg.StartFresh is set.
func NewRecorder(cfg Config) *Recorder {
	cfg.setDefaults()
	r := &Recorder{
		cfg: cfg,
		log: cfg.Logger.With(slog.String("session_id", cfg.ID)),
	}

	if cfg.Store != nil && cfg.StartFresh {
		if err := cfg.Store.DeleteSession(cfg.ID); err != nil {
			r.log.Warn("discard persisted session", "error", err)
		}
	}
	if cfg.Store != nil && !cfg.StartFresh {
		s, err := cfg.Store.LoadSession(cfg.ID)
		switch {
		case err == nil:
			r.resume(s)
			r.log.Debug("resumed writing session",
				"keystrokes", s.KeystrokeCount, "typing_ms", s.TotalTypingTime)
		case errors.Is(err, ErrNotFound):
		default:
			r.log.Warn("load persisted session, starting fresh", "error", err)
		}
	}
	if r.session == nil {
		r.session = NewSession(cfg.ID, cfg.Clock.Now())
		r.log.Debug("created writing session")
	}
	return r
}

// resume adopts a persisted session. A resumed session is open for writing.
func (r *Recorder) resume(s *WritingSession) {
	s.ID = r.cfg.ID
	s.EndTime = 0
	if s.PasteEvents == nil {
		s.PasteEvents = []PasteEvent{}
	}
	if s.Events == nil {
		s.Events = []keystroke.InputEvent{}
	}
	r.session = s
	r.closed = s.TypingTime()
	r.prevLen = s.TextLength
	if n := len(s.Events); n > 0 {
		r.prevLen = s.Events[n-1].TextLength
	}
}

// ID returns the writing context id.
func (r *Recorder) ID() string { return r.cfg.ID }

// Tracking reports whether the recorder is accepting events.
func (r *Recorder) Tracking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tracking
}

// Start begins accepting events. Starting a sealed session reopens it for
// further writing; snapshots handed out earlier are unaffected.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tracking {
		return
	}
	now := r.cfg.Clock.Now()
	if r.pristine() {
		r.session.StartTime = now.UnixMilli()
	} else {
		r.session.ResumedAt = append(r.session.ResumedAt, now.UnixMilli())
	}
	r.session.EndTime = 0
	r.tracking = true
	r.log.Debug("tracking started")
	r.persist()
}

// pristine reports whether nothing has been recorded yet.
func (r *Recorder) pristine() bool {
	s := r.session
	return len(s.Events) == 0 && len(s.PasteEvents) == 0 &&
		s.KeystrokeCount == 0 && s.TabSwitches == 0 && s.TotalTypingTime == 0
}

// RecordKeystroke records one key press. text is the editor content right
// after the key took effect; only its length is kept.
func (r *Recorder) RecordKeystroke(key, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.tracking {
		return
	}
	now := r.cfg.Clock.Now()
	curLen := keystroke.TextLength(text)
	c := keystroke.Classify(key, r.prevLen, curLen)

	s := r.session
	s.KeystrokeCount++
	if c.Backspace {
		s.BackspaceCount++
	}
	if c.Delete {
		s.DeletionCount++
	}
	if c.Shrank {
		s.EditCount++
	}
	s.TextLength = curLen
	s.Events = append(s.Events, keystroke.InputEvent{
		Timestamp:  now.UnixMilli(),
		Kind:       c.Kind,
		TextLength: curLen,
	})
	r.prevLen = curLen

	r.openInterval(now)
	r.armIdle()
	r.persist()
}

// RecordPaste records an accepted paste. The caller applies the paste-size
// policy first (keystroke.CheckPaste); rejected pastes must not reach here.
func (r *Recorder) RecordPaste(pasted, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.tracking {
		return
	}
	now := r.cfg.Clock.Now().UnixMilli()
	curLen := keystroke.TextLength(text)

	s := r.session
	s.PasteEvents = append(s.PasteEvents, PasteEvent{
		Timestamp:  now,
		TextLength: keystroke.TextLength(pasted),
	})
	s.TextLength = curLen
	s.Events = append(s.Events, keystroke.InputEvent{
		Timestamp:  now,
		Kind:       keystroke.KindPaste,
		TextLength: curLen,
	})
	r.prevLen = curLen
	r.persist()
}

// RecordTabSwitch records the document losing visibility.
func (r *Recorder) RecordTabSwitch() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.tracking {
		return
	}
	s := r.session
	s.TabSwitches++
	s.Events = append(s.Events, keystroke.InputEvent{
		Timestamp:  r.cfg.Clock.Now().UnixMilli(),
		Kind:       keystroke.KindTabSwitch,
		TextLength: r.prevLen,
	})
	r.persist()
}

// Stop closes any open typing interval, seals the session with finalText
// and returns the sealed snapshot. Stopping an already sealed session
// returns it unchanged.
func (r *Recorder) Stop(finalText string) *WritingSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.tracking && r.session.Sealed() {
		return r.session.Clone()
	}
	now := r.cfg.Clock.Now()
	r.closeInterval(now)
	r.tracking = false
	r.session.Seal(now, finalText)
	r.prevLen = r.session.TextLength
	r.log.Debug("tracking stopped",
		"keystrokes", r.session.KeystrokeCount,
		"edits", r.session.EditCount,
		"pastes", len(r.session.PasteEvents),
		"typing_ms", r.session.TotalTypingTime)
	r.persist()
	return r.session.Clone()
}

// Close stops tracking and cancels timers without sealing. The unsealed
// session stays persisted and can be resumed later.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeInterval(r.cfg.Clock.Now())
	if r.tracking {
		r.tracking = false
		r.persist()
	}
}

// Reset discards all recorded state, including the persisted copy, and
// begins a new empty session under the same id.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelTimers()
	r.typing = false
	r.closed = 0
	r.prevLen = 0
	if r.cfg.Store != nil {
		if err := r.cfg.Store.DeleteSession(r.cfg.ID); err != nil {
			r.log.Warn("delete persisted session", "error", err)
		}
	}
	r.session = NewSession(r.cfg.ID, r.cfg.Clock.Now())
	r.log.Debug("session reset")
}

// Snapshot returns a copy of the current session with the live typing time.
func (r *Recorder) Snapshot() *WritingSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.session.Clone()
	s.TotalTypingTime = r.typingTime(r.cfg.Clock.Now()).Milliseconds()
	return s
}

// TypingTime returns the live active typing time.
func (r *Recorder) TypingTime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typingTime(r.cfg.Clock.Now())
}

func (r *Recorder) typingTime(now time.Time) time.Duration {
	if r.typing {
		return r.closed + now.Sub(r.openedAt)
	}
	return r.closed
}

// openInterval starts a typing interval if none is open.
func (r *Recorder) openInterval(now time.Time) {
	if r.typing {
		return
	}
	r.typing = true
	r.openedAt = now
	r.armTick()
}

// closeInterval folds the open interval into the total and cancels timers.
func (r *Recorder) closeInterval(now time.Time) {
	if r.typing {
		r.closed += now.Sub(r.openedAt)
		r.typing = false
		r.session.TotalTypingTime = r.closed.Milliseconds()
	}
	r.cancelTimers()
}

func (r *Recorder) cancelTimers() {
	r.idleGen++
	if r.idle != nil {
		r.idle.Stop()
		r.idle = nil
	}
	r.tickGen++
	if r.tick != nil {
		r.tick.Stop()
		r.tick = nil
	}
}

// armIdle restarts the inactivity debounce.
func (r *Recorder) armIdle() {
	r.idleGen++
	if r.idle != nil {
		r.idle.Stop()
	}
	gen := r.idleGen
	r.idle = r.cfg.Clock.AfterFunc(r.cfg.IdleTimeout, func() { r.onIdle(gen) })
}

func (r *Recorder) onIdle(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.idleGen || !r.typing {
		return
	}
	r.closeInterval(r.cfg.Clock.Now())
	r.persist()
}

func (r *Recorder) armTick() {
	r.tickGen++
	gen := r.tickGen
	r.tick = r.cfg.Clock.AfterFunc(r.cfg.TickInterval, func() { r.onTick(gen) })
}

func (r *Recorder) onTick(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.tickGen || !r.typing {
		return
	}
	r.session.TotalTypingTime = r.typingTime(r.cfg.Clock.Now()).Milliseconds()
	r.persist()
	r.armTick()
}

// persist saves a copy of the session. Failures are logged and swallowed.
func (r *Recorder) persist() {
	if r.cfg.Store == nil {
		return
	}
	if err := r.cfg.Store.SaveSession(r.session.Clone()); err != nil {
		r.log.Warn("persist writing session", "error", err)
	}
}
