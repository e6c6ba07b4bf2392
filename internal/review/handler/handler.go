package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	kyc "vericore/internal/kyc/models"
	"vericore/internal/review/models"
	id "vericore/pkg/domain"
	dErrors "vericore/pkg/domain-errors"
	"vericore/pkg/platform/httputil"
	"vericore/pkg/requestcontext"
)

// Service defines the review operations the dashboard endpoints need.
type Service interface {
	List(ctx context.Context, filter models.Filter) ([]*models.Record, models.Stats, error)
	Get(ctx context.Context, sessionID id.SessionID) (*models.Record, error)
	Assign(ctx context.Context, sessionID id.SessionID, assignee models.Assignee) (*models.Record, error)
	Comment(ctx context.Context, sessionID id.SessionID, body string) (*models.Record, error)
	SetStatus(ctx context.Context, sessionID id.SessionID, to kyc.Status) (*models.Record, error)
	Export(ctx context.Context, filter models.Filter, w io.Writer) error
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	service Service
	logger  *slog.Logger
	guard   func(http.Handler) http.Handler
}

// New builds the handler. guard authenticates reviewers; nil leaves the
// endpoints open, which is only meant for local runs.
func New(service Service, logger *slog.Logger, guard func(http.Handler) http.Handler) *Handler {
	return &Handler{service: service, logger: logger, guard: guard}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard)
		}
		r.Get("/v1/records", h.HandleList)
		r.Get("/v1/records/export", h.HandleExport)
		r.Route("/v1/records/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Post("/assign", h.HandleAssign)
			r.Post("/comments", h.HandleComment)
			r.Post("/status", h.HandleStatus)
		})
	})
}

// HandleList handles GET /v1/records.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	recs, stats, err := h.service.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list records",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(recs, stats, filter))
}

// HandleExport handles GET /v1/records/export. It accepts the list filters.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="verifications-%s.xlsx"`, requestcontext.Now(ctx).UTC().Format("20060102")))
	if err := h.service.Export(ctx, filter, w); err != nil {
		h.logger.ErrorContext(ctx, "failed to export records",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		w.Header().Del("Content-Disposition")
		httputil.WriteError(w, err)
	}
}

// HandleGet handles GET /v1/records/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Get(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// HandleAssign handles POST /v1/records/{id}/assign. An empty reviewer id
// claims the record for the caller.
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AssignRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	assignee := models.Assignee{ID: requestcontext.ReviewerID(ctx), Name: requestcontext.ReviewerName(ctx)}
	if req.ReviewerID != nil {
		assignee = models.Assignee{ID: *req.ReviewerID, Name: req.Name}
	}
	h.mutation(w, r, sessionID, "assign", func() (*models.Record, error) {
		return h.service.Assign(ctx, sessionID, assignee)
	})
}

// HandleComment handles POST /v1/records/{id}/comments.
func (h *Handler) HandleComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CommentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.mutation(w, r, sessionID, "comment", func() (*models.Record, error) {
		return h.service.Comment(ctx, sessionID, req.Body)
	})
}

// HandleStatus handles POST /v1/records/{id}/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[StatusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.mutation(w, r, sessionID, "set_status", func() (*models.Record, error) {
		return h.service.SetStatus(ctx, sessionID, req.status)
	})
}

func (h *Handler) mutation(w http.ResponseWriter, r *http.Request, sessionID id.SessionID, op string, fn func() (*models.Record, error)) {
	ctx := r.Context()
	rec, err := fn()
	if err != nil {
		h.logger.WarnContext(ctx, "record update rejected",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", sessionID.String(),
			"op", op,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "record updated",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", sessionID.String(),
		"op", op,
	)
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (id.SessionID, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.SessionID{}, false
	}
	return sessionID, true
}

// parseFilter reads status, assignee ("me" or a reviewer id), q, limit and offset.
func parseFilter(r *http.Request) (models.Filter, error) {
	q := r.URL.Query()
	var f models.Filter
	if s := q.Get("status"); s != "" && s != "All" {
		status, err := kyc.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = status
	}
	switch a := q.Get("assignee"); a {
	case "":
	case "me":
		me := requestcontext.ReviewerID(r.Context())
		if me.IsNil() {
			return f, dErrors.New(dErrors.CodeUnauthorized, "reviewer authentication required")
		}
		f.AssigneeID = &me
	default:
		reviewer, err := id.ParseReviewerID(a)
		if err != nil {
			return f, err
		}
		f.AssigneeID = &reviewer
	}
	f.Query = q.Get("q")
	if len(f.Query) > 200 {
		return f, dErrors.New(dErrors.CodeValidation, "q must be at most 200 characters")
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(q.Get("offset"), "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, name+" must be a non-negative integer")
	}
	return n, nil
}

func toListResponse(recs []*models.Record, stats models.Stats, f models.Filter) ListResponse {
	out := ListResponse{Records: make([]RecordSummary, 0, len(recs)), Stats: stats, Offset: f.Offset}
	for _, r := range recs {
		s := RecordSummary{
			SessionID:    r.ID,
			CaseRef:      r.CaseRef.String(),
			CustomerName: r.CustomerName(),
			Documents:    r.DocumentOrder,
			Status:       string(r.Status),
			Risk:         string(r.Risk),
			Score:        r.FaceMatchScore,
			Mismatches:   len(r.Mismatches),
			Assignee:     r.Assignee,
			UpdatedAt:    r.UpdatedAt,
		}
		if r.FinalizedAt != nil {
			s.FinalizedAt = *r.FinalizedAt
		}
		out.Records = append(out.Records, s)
	}
	return out
}

// RecordSummary is one row of the dashboard list.
type RecordSummary struct {
	SessionID    id.SessionID     `json:"session_id"`
	CaseRef      string           `json:"case_ref"`
	CustomerName string           `json:"customer_name"`
	Documents    []string         `json:"documents"`
	Status       string           `json:"status"`
	Risk         string           `json:"risk"`
	Score        int              `json:"face_match_score"`
	Mismatches   int              `json:"mismatches"`
	Assignee     *models.Assignee `json:"assignee,omitempty"`
	FinalizedAt  time.Time        `json:"finalized_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type ListResponse struct {
	Records []RecordSummary `json:"records"`
	Stats   models.Stats    `json:"stats"`
	Offset  int             `json:"offset"`
}
