package progress

import (
	"context"
	"sync"
	"time"

	"github.com/example/watchtrack/internal/interval"
)

// MemoryRepository is the in-memory reference implementation. It backs
// development deployments and tests; state is lost on restart and not shared
// across instances.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[recordKey]Record
}

type recordKey struct {
	userID  string
	videoID string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[recordKey]Record)}
}

func (r *MemoryRepository) Get(_ context.Context, userID, videoID string) (Record, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[recordKey{userID, videoID}]
	if !ok {
		return Record{}, false, nil
	}
	return cloneRecord(rec), true, nil
}

func (r *MemoryRepository) Upsert(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := recordKey{rec.UserID, rec.VideoID}
	current, ok := r.records[key]
	if !ok {
		if rec.Version != 1 {
			return ErrVersionConflict
		}
	} else if current.Version != rec.Version-1 {
		return ErrVersionConflict
	}

	rec.UpdatedAt = time.Now().UTC()
	r.records[key] = cloneRecord(rec)
	return nil
}

// cloneRecord copies the interval slice so callers can never alias the
// stored state.
func cloneRecord(rec Record) Record {
	out := rec
	out.Intervals = make([]interval.Interval, len(rec.Intervals))
	copy(out.Intervals, rec.Intervals)
	return out
}
