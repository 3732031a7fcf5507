// Package progress tracks per-(user, video) watch coverage: the canonical
// watched-interval set, the last playback position and the service operations
// around them.
package progress

import (
	"context"
	"errors"
	"time"

	"github.com/example/watchtrack/internal/interval"
)

var (
	// ErrVersionConflict means the record changed between Get and Upsert.
	// The service resolves it by re-reading and re-merging; it never reaches
	// HTTP callers.
	ErrVersionConflict = errors.New("progress record version conflict")

	// ErrStorage wraps repository failures that are not a normal absent key.
	ErrStorage = errors.New("progress storage failure")
)

// Record is the persisted watch state for one (user, video) pair.
//
// Intervals always holds the canonical merged set: sorted ascending by Start,
// pairwise non-overlapping and non-touching. Writers establish the invariant
// before Upsert; readers rely on it.
type Record struct {
	UserID       string              `json:"user_id"`
	VideoID      string              `json:"video_id"`
	Intervals    []interval.Interval `json:"watched_intervals"`
	LastPosition float64             `json:"last_position"`
	Version      int64               `json:"version"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// NewRecord is the lazily-created default for a pair never submitted before.
func NewRecord(userID, videoID string) Record {
	return Record{
		UserID:    userID,
		VideoID:   videoID,
		Intervals: []interval.Interval{},
	}
}

// Repository persists Records keyed by (UserID, VideoID).
//
// Upsert is a compare-and-set on Version: it succeeds only when the stored
// version equals rec.Version-1 (or the key is absent and rec.Version is 1)
// and fails with ErrVersionConflict otherwise. Two concurrent submissions for
// the same key therefore serialize instead of silently losing one writer's
// intervals; submissions for different keys proceed in parallel.
type Repository interface {
	// Get returns the record and true, or the zero record and false when the
	// key has never been written. A missing key is not an error.
	Get(ctx context.Context, userID, videoID string) (Record, bool, error)

	// Upsert inserts or replaces the record under the version rule above.
	Upsert(ctx context.Context, rec Record) error
}
