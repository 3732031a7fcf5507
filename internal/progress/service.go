package progress

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/watchtrack/internal/interval"
)

// Progress is the read-side answer for one (user, video) pair.
type Progress struct {
	LastPosition float64 `json:"last_position"`
	Percentage   float64 `json:"percentage"`
}

// Service orchestrates merge, aggregation and persistence. It is stateless
// between calls; every invocation is an independent short-lived operation.
type Service struct {
	repo  Repository
	cache *Cache
	log   *zap.Logger
}

func NewService(repo Repository, cache *Cache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, cache: cache, log: log}
}

// SubmitInterval merges iv into the record for (userID, videoID), overwrites
// the last position (last write wins, no monotonicity check) and returns the
// resulting coverage percentage for duration.
//
// Validation failures reject the call before any state is touched. A lost
// version race re-reads and re-merges, so a concurrent submission for the
// same key is folded in rather than overwritten.
func (s *Service) SubmitInterval(ctx context.Context, userID, videoID string, iv interval.Interval, currentPosition, duration float64) (float64, error) {
	if err := iv.Validate(); err != nil {
		return 0, err
	}

	storageRetried := false
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		rec, found, err := s.repo.Get(ctx, userID, videoID)
		if err != nil {
			if !storageRetried {
				storageRetried = true
				continue
			}
			return 0, err
		}
		if !found {
			rec = NewRecord(userID, videoID)
		}

		combined := make([]interval.Interval, 0, len(rec.Intervals)+1)
		combined = append(combined, rec.Intervals...)
		combined = append(combined, iv)
		merged, err := interval.Merge(combined)
		if err != nil {
			return 0, err
		}

		rec.Intervals = merged
		rec.LastPosition = currentPosition
		rec.Version++

		err = s.repo.Upsert(ctx, rec)
		if err == nil {
			if cerr := s.cache.invalidate(ctx, userID, videoID); cerr != nil {
				s.log.Warn("progress cache invalidate failed", zap.Error(cerr))
			}
			return interval.Coverage(merged, duration), nil
		}
		if errors.Is(err, ErrVersionConflict) {
			// A conflict means another writer committed; re-reading folds
			// their intervals in, so every retry makes progress.
			s.log.Debug("progress version conflict, retrying",
				zap.String("user_id", userID),
				zap.String("video_id", videoID),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if !storageRetried {
			storageRetried = true
			continue
		}
		return 0, err
	}
}

// GetProgress returns the last position and coverage for duration. A pair
// never submitted yields zeros, not an error.
func (s *Service) GetProgress(ctx context.Context, userID, videoID string, duration float64) (Progress, error) {
	if entry, hit, err := s.cache.get(ctx, userID, videoID); err == nil && hit {
		return Progress{
			LastPosition: entry.LastPosition,
			Percentage:   interval.Percent(entry.WatchedSeconds, duration),
		}, nil
	} else if err != nil {
		s.log.Warn("progress cache read failed", zap.Error(err))
	}

	rec, found, err := s.repo.Get(ctx, userID, videoID)
	if err != nil {
		// One retry for a transient read failure, mirroring the write path.
		rec, found, err = s.repo.Get(ctx, userID, videoID)
		if err != nil {
			return Progress{}, err
		}
	}
	if !found {
		return Progress{}, nil
	}

	if cerr := s.cache.set(ctx, userID, videoID, cacheEntry{
		LastPosition:   rec.LastPosition,
		WatchedSeconds: interval.WatchedSeconds(rec.Intervals),
	}); cerr != nil {
		s.log.Warn("progress cache write failed", zap.Error(cerr))
	}

	return Progress{
		LastPosition: rec.LastPosition,
		Percentage:   interval.Coverage(rec.Intervals, duration),
	}, nil
}
