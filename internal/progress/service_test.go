package progress

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/example/watchtrack/internal/interval"
)

// flakyRepository fails a configurable number of Get/Upsert calls before
// delegating to the wrapped repository.
type flakyRepository struct {
	Repository
	mu          sync.Mutex
	getFails    int
	upsertFails int
}

var errTransient = errors.New("transient backend failure")

func (f *flakyRepository) Get(ctx context.Context, userID, videoID string) (Record, bool, error) {
	f.mu.Lock()
	fail := f.getFails > 0
	if fail {
		f.getFails--
	}
	f.mu.Unlock()
	if fail {
		return Record{}, false, errTransient
	}
	return f.Repository.Get(ctx, userID, videoID)
}

func (f *flakyRepository) Upsert(ctx context.Context, rec Record) error {
	f.mu.Lock()
	fail := f.upsertFails > 0
	if fail {
		f.upsertFails--
	}
	f.mu.Unlock()
	if fail {
		return errTransient
	}
	return f.Repository.Upsert(ctx, rec)
}

func newTestService() (*Service, *MemoryRepository) {
	repo := NewMemoryRepository()
	return NewService(repo, nil, nil), repo
}

func TestSubmitInterval_FreshRecord(t *testing.T) {
	svc, _ := newTestService()

	pct, err := svc.SubmitInterval(context.Background(), "user-a", "video-1", interval.Interval{Start: 0, End: 30}, 30, 120)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if pct != 25.00 {
		t.Fatalf("expected 25.00, got %v", pct)
	}
}

func TestSubmitInterval_MergesAcrossSubmissions(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	for _, iv := range []interval.Interval{{Start: 0, End: 5}, {Start: 5, End: 10}, {Start: 2, End: 8}} {
		if _, err := svc.SubmitInterval(ctx, "user-a", "video-1", iv, iv.End, 100); err != nil {
			t.Fatalf("submit %v: %v", iv, err)
		}
	}

	rec, found, _ := repo.Get(ctx, "user-a", "video-1")
	if !found {
		t.Fatal("expected record")
	}
	if len(rec.Intervals) != 1 || rec.Intervals[0] != (interval.Interval{Start: 0, End: 10}) {
		t.Fatalf("expected canonical [0,10], got %v", rec.Intervals)
	}
	if rec.LastPosition != 8 {
		t.Fatalf("expected last position 8 (last write wins), got %v", rec.LastPosition)
	}
}

func TestSubmitInterval_LastPositionMayMoveBackward(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	if _, err := svc.SubmitInterval(ctx, "user-a", "video-1", interval.Interval{Start: 0, End: 50}, 50, 100); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.SubmitInterval(ctx, "user-a", "video-1", interval.Interval{Start: 10, End: 20}, 20, 100); err != nil {
		t.Fatalf("submit: %v", err)
	}

	rec, _, _ := repo.Get(ctx, "user-a", "video-1")
	if rec.LastPosition != 20 {
		t.Fatalf("expected last position 20, got %v", rec.LastPosition)
	}
}

func TestSubmitInterval_ValidationRejectedBeforeMutation(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	if _, err := svc.SubmitInterval(ctx, "user-a", "video-1", interval.Interval{Start: 10, End: 2}, 10, 100); !errors.Is(err, interval.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}

	_, found, _ := repo.Get(ctx, "user-a", "video-1")
	if found {
		t.Fatal("rejected submission must not create a record")
	}
}

func TestSubmitInterval_MonotonicCoverage(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	prev := 0.0
	for _, iv := range []interval.Interval{{Start: 40, End: 50}, {Start: 0, End: 10}, {Start: 45, End: 46}, {Start: 5, End: 42}} {
		pct, err := svc.SubmitInterval(ctx, "user-a", "video-1", iv, iv.End, 200)
		if err != nil {
			t.Fatalf("submit %v: %v", iv, err)
		}
		if pct < prev {
			t.Fatalf("coverage decreased: %v -> %v after %v", prev, pct, iv)
		}
		prev = pct
	}
}

func TestSubmitInterval_ConcurrentSameKeyLosesNothing(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	// Disjoint one-second intervals submitted from many goroutines; every
	// one of them must survive into the merged set.
	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := float64(i * 2)
			_, err := svc.SubmitInterval(ctx, "user-a", "video-1", interval.Interval{Start: start, End: start + 1}, start+1, 1000)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent submit: %v", err)
		}
	}

	rec, _, _ := repo.Get(ctx, "user-a", "video-1")
	if len(rec.Intervals) != n {
		t.Fatalf("lost update: expected %d disjoint intervals, got %d", n, len(rec.Intervals))
	}
	if got := interval.WatchedSeconds(rec.Intervals); got != n {
		t.Fatalf("expected %d watched seconds, got %v", n, got)
	}
}

func TestSubmitInterval_RetriesTransientStorageErrorOnce(t *testing.T) {
	repo := NewMemoryRepository()
	flaky := &flakyRepository{Repository: repo, upsertFails: 1}
	svc := NewService(flaky, nil, nil)

	pct, err := svc.SubmitInterval(context.Background(), "user-a", "video-1", interval.Interval{Start: 0, End: 30}, 30, 120)
	if err != nil {
		t.Fatalf("expected retry to absorb one failure, got %v", err)
	}
	if pct != 25.00 {
		t.Fatalf("expected 25.00, got %v", pct)
	}
}

func TestSubmitInterval_SecondStorageFailureSurfaces(t *testing.T) {
	repo := NewMemoryRepository()
	flaky := &flakyRepository{Repository: repo, upsertFails: 2}
	svc := NewService(flaky, nil, nil)

	_, err := svc.SubmitInterval(context.Background(), "user-a", "video-1", interval.Interval{Start: 0, End: 30}, 30, 120)
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error to surface after one retry, got %v", err)
	}
}

func TestGetProgress_NeverSubmitted(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.GetProgress(context.Background(), "user-a", "video-never", 120)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if p.LastPosition != 0 || p.Percentage != 0 {
		t.Fatalf("expected zeros for absent record, got %+v", p)
	}
}

func TestGetProgress_ExistingRecord(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.SubmitInterval(ctx, "user-a", "video-1", interval.Interval{Start: 0, End: 30}, 17, 120); err != nil {
		t.Fatalf("submit: %v", err)
	}

	p, err := svc.GetProgress(ctx, "user-a", "video-1", 120)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if p.LastPosition != 17 {
		t.Fatalf("expected last position 17, got %v", p.LastPosition)
	}
	if p.Percentage != 25.00 {
		t.Fatalf("expected 25.00, got %v", p.Percentage)
	}
}

func TestGetProgress_UnknownDurationIsZeroPercent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.SubmitInterval(ctx, "user-a", "video-1", interval.Interval{Start: 0, End: 30}, 30, 0); err != nil {
		t.Fatalf("submit: %v", err)
	}

	p, err := svc.GetProgress(ctx, "user-a", "video-1", 0)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if p.Percentage != 0 {
		t.Fatalf("expected 0%% for unknown duration, got %v", p.Percentage)
	}
	if p.LastPosition != 30 {
		t.Fatalf("expected last position 30, got %v", p.LastPosition)
	}
}
