package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/watchtrack/internal/interval"
)

// PostgresRepository is the production implementation.
//
// Expected schema:
//
//	CREATE TABLE user_video_progress (
//	  user_id           text NOT NULL,
//	  video_id          text NOT NULL,
//	  watched_intervals jsonb NOT NULL DEFAULT '[]',
//	  last_position     double precision NOT NULL DEFAULT 0,
//	  version           bigint NOT NULL,
//	  updated_at        timestamptz NOT NULL,
//	  PRIMARY KEY (user_id, video_id)
//	);
//
// Intervals are stored as `[[start, end], ...]` pairs. The version column
// carries the compare-and-set contract: both write paths are conditional and
// report ErrVersionConflict when another writer got there first, so a lost
// update cannot slip through even across instances.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID, videoID string) (Record, bool, error) {
	q := `SELECT watched_intervals, last_position, version, updated_at
	      FROM user_video_progress WHERE user_id=$1 AND video_id=$2`

	rec := Record{UserID: userID, VideoID: videoID}
	var raw []byte
	err := r.db.QueryRow(ctx, q, userID, videoID).
		Scan(&raw, &rec.LastPosition, &rec.Version, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("%w: get: %v", ErrStorage, err)
	}
	rec.Intervals, err = decodeIntervals(raw)
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: get: %v", ErrStorage, err)
	}
	return rec, true, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, rec Record) error {
	raw, err := encodeIntervals(rec.Intervals)
	if err != nil {
		return fmt.Errorf("%w: upsert: %v", ErrStorage, err)
	}
	now := time.Now().UTC()

	if rec.Version == 1 {
		q := `INSERT INTO user_video_progress (user_id, video_id, watched_intervals, last_position, version, updated_at)
		      VALUES ($1, $2, $3, $4, 1, $5)
		      ON CONFLICT (user_id, video_id) DO NOTHING`
		ct, err := r.db.Exec(ctx, q, rec.UserID, rec.VideoID, raw, rec.LastPosition, now)
		if err != nil {
			return fmt.Errorf("%w: upsert: %v", ErrStorage, err)
		}
		if ct.RowsAffected() == 0 {
			// Row already exists; this writer read stale (absent) state.
			return ErrVersionConflict
		}
		return nil
	}

	q := `UPDATE user_video_progress
	      SET watched_intervals=$3, last_position=$4, version=$5, updated_at=$6
	      WHERE user_id=$1 AND video_id=$2 AND version=$5-1`
	ct, err := r.db.Exec(ctx, q, rec.UserID, rec.VideoID, raw, rec.LastPosition, rec.Version, now)
	if err != nil {
		return fmt.Errorf("%w: upsert: %v", ErrStorage, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

// encodeIntervals renders the persisted `[[start, end], ...]` layout.
func encodeIntervals(ivs []interval.Interval) ([]byte, error) {
	pairs := make([][2]float64, len(ivs))
	for i, iv := range ivs {
		pairs[i] = [2]float64{iv.Start, iv.End}
	}
	return json.Marshal(pairs)
}

func decodeIntervals(raw []byte) ([]interval.Interval, error) {
	var pairs [][2]float64
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, err
	}
	out := make([]interval.Interval, len(pairs))
	for i, p := range pairs {
		out[i] = interval.Interval{Start: p[0], End: p[1]}
	}
	return out, nil
}
