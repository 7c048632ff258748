// Package handler is the thin HTTP layer over the activity engine. It
// delegates to the lifecycle service, query engine, aggregator, and exporter
// without embedding business logic so transport concerns stay isolated.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"vaulttrail/internal/activity"
	"vaulttrail/internal/activity/device"
	"vaulttrail/pkg/requestcontext"
)

type Handler struct {
	service    *activity.Service
	query      *activity.Query
	aggregator *activity.Aggregator
	exporter   *activity.Exporter
	logger     *slog.Logger
}

func New(service *activity.Service, query *activity.Query, aggregator *activity.Aggregator, exporter *activity.Exporter, logger *slog.Logger) *Handler {
	return &Handler{
		service:    service,
		query:      query,
		aggregator: aggregator,
		exporter:   exporter,
		logger:     logger,
	}
}

// Register wires the activity endpoints onto the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/activities", func(r chi.Router) {
		r.Post("/", h.HandleLogActivity)
		r.Get("/", h.HandleListActivities)
		r.Delete("/", h.HandleClearActivities)
		r.Get("/stats", h.HandleStats)
		r.Get("/export", h.HandleExport)
		r.Post("/{id}/steps", h.HandleAddSubStep)
		r.Post("/{id}/complete", h.HandleCompleteActivity)
	})
}

// HandleLogActivity creates a new activity record. This is the one mutation
// whose storage failures surface to the caller, since the caller needs the id.
func (h *Handler) HandleLogActivity(w http.ResponseWriter, r *http.Request) {
	var req logActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	opts := []activity.LogOption{}
	if req.Status != "" {
		opts = append(opts, activity.WithStatus(req.Status))
	}
	if req.Details != nil {
		opts = append(opts, activity.WithDetails(req.Details))
	}

	did := req.UserDID
	if did == "" {
		did = requestcontext.UserDID(ctx)
	}
	if did != "" {
		opts = append(opts, activity.WithUserDID(did))
	}

	if len(req.SubSteps) > 0 {
		steps := make([]activity.SubStep, len(req.SubSteps))
		for i, st := range req.SubSteps {
			status := st.Status
			if status == "" {
				status = activity.SubStepCompleted
			}
			steps[i] = activity.SubStep{
				Order:       i + 1,
				Description: st.Description,
				Status:      status,
				Details:     st.Details,
			}
		}
		opts = append(opts, activity.WithSubSteps(steps))
	}

	if meta := requestMetadata(ctx); meta != nil {
		opts = append(opts, activity.WithMetadata(meta))
	}

	id, err := h.service.LogActivity(ctx, req.Type, req.Description, opts...)
	if err != nil {
		h.logger.Error("log activity failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "activity store unavailable")
		return
	}
	writeJSON(w, http.StatusCreated, logActivityResponse{ID: id})
}

// HandleAddSubStep appends a checkpoint. Best-effort: the response is 202
// regardless of whether the record still exists, matching the engine's
// no-op-on-missing-id policy.
func (h *Handler) HandleAddSubStep(w http.ResponseWriter, r *http.Request) {
	var req subStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := []activity.SubStepOption{}
	if req.Status != "" {
		opts = append(opts, activity.WithSubStepStatus(req.Status))
	}
	if req.Details != nil {
		opts = append(opts, activity.WithSubStepDetails(req.Details))
	}

	h.service.AddSubStep(r.Context(), chi.URLParam(r, "id"), req.Description, opts...)
	w.WriteHeader(http.StatusAccepted)
}

// HandleCompleteActivity closes an activity with its final status. The body
// is optional; an absent status completes with success. ContentLength is not
// consulted so chunked requests still carry their payload.
func (h *Handler) HandleCompleteActivity(w http.ResponseWriter, r *http.Request) {
	req := completeActivityRequest{Status: activity.StatusSuccess}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Status == "" {
			req.Status = activity.StatusSuccess
		}
	}

	h.service.CompleteActivity(r.Context(), chi.URLParam(r, "id"), req.Status)
	w.WriteHeader(http.StatusAccepted)
}

// HandleListActivities serves the combined reporting filter:
// search, then type, then status, then time range.
func (h *Handler) HandleListActivities(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := h.query.Filter(r.Context(), criteria)
	if err != nil {
		h.logger.Error("list activities failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "activity store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, listActivitiesResponse{Activities: logs, Count: len(logs)})
}

// HandleStats serves the aggregate summary.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.aggregator.Aggregate(r.Context())
	if err != nil {
		h.logger.Error("aggregate stats failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "activity store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleExport delivers the rendered collection as a named file download.
// It accepts the same filter parameters as the listing; a filtered request
// exports the query engine's view instead of the full collection.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := activity.ParseFormat(q.Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	criteria, err := parseCriteria(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var export activity.Export
	if criteria.Zero() {
		export, err = h.exporter.Export(r.Context(), format)
	} else {
		var logs []activity.Log
		logs, err = h.query.Filter(r.Context(), criteria)
		if err == nil {
			export, err = h.exporter.ExportFiltered(r.Context(), logs, format)
		}
	}
	if err != nil {
		h.logger.Error("export failed", "format", format, "error", err)
		writeError(w, http.StatusInternalServerError, "export generation failed")
		return
	}

	w.Header().Set("Content-Type", export.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(export.Content))
}

// HandleClearActivities wipes the history.
func (h *Handler) HandleClearActivities(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		h.logger.Error("clear activities failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "activity store unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseCriteria reads the shared filter query parameters used by the listing
// and export endpoints.
func parseCriteria(q url.Values) (activity.Criteria, error) {
	criteria := activity.Criteria{
		Search: q.Get("q"),
		Type:   activity.Type(q.Get("type")),
		Status: activity.Status(q.Get("status")),
	}
	if v := q.Get("from"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return activity.Criteria{}, errors.New("from must be epoch milliseconds")
		}
		criteria.Start = ms
	}
	if v := q.Get("to"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return activity.Criteria{}, errors.New("to must be epoch milliseconds")
		}
		criteria.End = ms
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return activity.Criteria{}, errors.New("limit must be a non-negative integer")
		}
		criteria.Limit = n
	}
	return criteria, nil
}

// requestMetadata builds record metadata from the request-scoped values the
// middleware captured. Returns nil when nothing was captured so the field
// stays absent rather than empty.
func requestMetadata(ctx context.Context) *activity.Metadata {
	ip := requestcontext.ClientIP(ctx)
	ua := requestcontext.UserAgent(ctx)
	if ip == "" && ua == "" {
		return nil
	}

	meta := &activity.Metadata{
		IPAddress: ip,
		UserAgent: ua,
	}
	if ua != "" {
		meta.Device = device.ParseUserAgent(ua)
	}
	return meta
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
