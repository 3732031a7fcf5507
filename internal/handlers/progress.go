// Package handlers exposes the HTTP surface: progress submission/read and
// the auth endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/watchtrack/internal/events"
	"github.com/example/watchtrack/internal/interval"
	"github.com/example/watchtrack/internal/platform/api"
	"github.com/example/watchtrack/internal/platform/auth"
	"github.com/example/watchtrack/internal/platform/httpserver"
	"github.com/example/watchtrack/internal/progress"
)

type submitProgressRequest struct {
	VideoID     string    `json:"videoId"`
	NewInterval []float64 `json:"newInterval"`
	CurrentTime float64   `json:"currentTime"`
	Duration    float64   `json:"duration"`
}

type submitProgressResponse struct {
	Percentage float64 `json:"percentage"`
}

type getProgressResponse struct {
	LastPosition float64 `json:"lastPosition"`
	Percentage   float64 `json:"percentage"`
}

// SubmitProgress handles POST /api/video/progress: merges the submitted
// interval into the caller's record and answers with the coverage percentage.
func SubmitProgress(svc *progress.Service, ep *events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok || strings.TrimSpace(uid) == "" {
			api.Unauthorized(w, "AUTH_MISSING", "Missing auth", rid)
			return
		}

		var req submitProgressRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
			return
		}
		videoID := strings.TrimSpace(req.VideoID)
		if videoID == "" {
			api.BadRequest(w, "MISSING_VIDEO_ID", "videoId is required", rid, nil)
			return
		}
		if len(req.NewInterval) != 2 {
			api.BadRequest(w, "VALIDATION", "newInterval must be [start, end]", rid, nil)
			return
		}

		iv := interval.Interval{Start: req.NewInterval[0], End: req.NewInterval[1]}
		pct, err := svc.SubmitInterval(r.Context(), uid, videoID, iv, req.CurrentTime, req.Duration)
		if err != nil {
			if errors.Is(err, interval.ErrInvalid) {
				api.BadRequest(w, "VALIDATION", err.Error(), rid, nil)
				return
			}
			api.Internal(w, rid)
			return
		}

		ep.Publish(events.SubjectProgressUpdated, "progress_updated", uid, map[string]any{
			"video_id":   videoID,
			"percentage": pct,
		})
		api.WriteJSON(w, http.StatusOK, submitProgressResponse{Percentage: pct})
	}
}

// GetProgress handles GET /api/video/progress/{video_id}?duration=.
func GetProgress(svc *progress.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok || strings.TrimSpace(uid) == "" {
			api.Unauthorized(w, "AUTH_MISSING", "Missing auth", rid)
			return
		}

		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		if videoID == "" {
			api.BadRequest(w, "MISSING_VIDEO_ID", "video_id is required", rid, nil)
			return
		}

		// Duration may legitimately be unknown; then the percentage is 0.
		var duration float64
		if raw := strings.TrimSpace(r.URL.Query().Get("duration")); raw != "" {
			d, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				api.BadRequest(w, "VALIDATION", "duration must be a number", rid, nil)
				return
			}
			duration = d
		}

		p, err := svc.GetProgress(r.Context(), uid, videoID, duration)
		if err != nil {
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, getProgressResponse{
			LastPosition: p.LastPosition,
			Percentage:   p.Percentage,
		})
	}
}
