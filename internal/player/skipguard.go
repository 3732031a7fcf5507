// Package player holds the client-side playback policy: which raw intervals
// a session is allowed to turn into watch submissions.
package player

import (
	"context"

	"github.com/example/watchtrack/internal/interval"
)

const (
	// skipTolerance absorbs normal player timer jitter; any forward jump
	// beyond it past the furthest legitimately reached position is rejected.
	skipTolerance = 1.0

	// minSegmentSeconds drops sub-second pause/resume noise instead of
	// flooding the service with it.
	minSegmentSeconds = 1.0
)

// Submitter receives completed watch segments. progress.Service satisfies it.
type Submitter interface {
	SubmitInterval(ctx context.Context, userID, videoID string, iv interval.Interval, currentPosition, duration float64) (float64, error)
}

// SkipGuard observes a single playback timeline and decides which segments
// count as watched. Only time actually traversed forward in real time (or
// rewatched behind the high-water mark) earns credit; scrubbing ahead is
// forced back.
//
// State is O(1) regardless of session length. A SkipGuard must be driven by
// exactly one ordered event sequence; it is not safe for concurrent use.
type SkipGuard struct {
	maxReached   float64
	segmentStart float64
	watching     bool
	position     float64
}

// NewSkipGuard starts a session that resumes from resumePosition, typically
// the last position returned by GetProgress. Content up to that point is
// considered legitimately reachable.
func NewSkipGuard(resumePosition float64) *SkipGuard {
	if resumePosition < 0 {
		resumePosition = 0
	}
	return &SkipGuard{maxReached: resumePosition, position: resumePosition}
}

// Tick feeds the current playback position. When the position jumps more
// than the tolerance past the high-water mark, Tick reports the skip as
// rejected and returns the position the player must seek back to; the guard's
// state does not advance. Otherwise the high-water mark follows the position
// and an idle guard opens a new segment at p.
func (g *SkipGuard) Tick(p float64) (forcedBack float64, rejected bool) {
	if p > g.maxReached+skipTolerance {
		return g.maxReached, true
	}

	g.position = p
	if p > g.maxReached {
		g.maxReached = p
	}
	if !g.watching {
		g.watching = true
		g.segmentStart = p
	}
	return 0, false
}

// Pause closes the open segment, if any. Segments shorter than the minimum
// are discarded silently. Either way the guard returns to idle.
func (g *SkipGuard) Pause() (interval.Interval, bool) {
	if !g.watching {
		return interval.Interval{}, false
	}
	g.watching = false

	seg := interval.Interval{Start: g.segmentStart, End: g.position}
	if seg.Length() < minSegmentSeconds {
		return interval.Interval{}, false
	}
	return seg, true
}

// SeekCompleted closes the open segment exactly like Pause: a seek ends
// continuous watching, whatever its direction.
func (g *SkipGuard) SeekCompleted() (interval.Interval, bool) {
	return g.Pause()
}

// MaxReached exposes the high-water mark, mainly for players that render it.
func (g *SkipGuard) MaxReached() float64 {
	return g.maxReached
}

// Session couples a SkipGuard with the service submissions it emits. It is
// the headless equivalent of a player wiring onTimeUpdate/onPause into
// progress submission.
type Session struct {
	Guard    *SkipGuard
	Submit   Submitter
	UserID   string
	VideoID  string
	Duration float64
}

// Pause closes the current segment and, when it is long enough, submits it
// together with the current position. It returns the coverage percentage
// reported by the service, or -1 when nothing was submitted.
func (s *Session) Pause(ctx context.Context) (float64, error) {
	seg, ok := s.Guard.Pause()
	if !ok {
		return -1, nil
	}
	return s.Submit.SubmitInterval(ctx, s.UserID, s.VideoID, seg, s.Guard.position, s.Duration)
}
