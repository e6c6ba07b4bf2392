package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vericore/internal/kyc/buckets"
	"vericore/internal/settings"
	"vericore/pkg/platform/httputil"
	"vericore/pkg/requestcontext"
)

// Service defines the settings operations the handler needs.
type Service interface {
	Current(ctx context.Context) (settings.Snapshot, error)
	Apply(ctx context.Context, u settings.Update) (settings.Snapshot, error)
}

// Handler exposes the platform settings and the document catalog.
type Handler struct {
	service Service
	logger  *slog.Logger
	// guard protects writes; typically admin.RequireAdminToken.
	guard func(http.Handler) http.Handler
}

func New(service Service, logger *slog.Logger, guard func(http.Handler) http.Handler) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		guard:   guard,
	}
}

// Register mounts the settings endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/settings", h.HandleGet)
	r.Get("/v1/catalog", h.HandleCatalog)
	r.Group(func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard)
		}
		r.Put("/v1/settings", h.HandleUpdate)
	})
}

// HandleGet handles GET /v1/settings.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Current(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(snap))
}

// HandleCatalog handles GET /v1/catalog.
func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Current(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	f := buckets.Evaluate(snap.Settings.RequiredBuckets, nil)
	resp := CatalogResponse{Documents: make([]CatalogEntry, 0, len(snap.Catalog.Documents))}
	for _, d := range snap.Catalog.Documents {
		resp.Documents = append(resp.Documents, CatalogEntry{
			Name:           d.Name,
			Buckets:        d.Buckets.Strings(),
			NeedsBack:      d.NeedsBack,
			ExpectedFields: d.ExpectedFields,
			Helps:          buckets.Helps(f, d),
		})
	}
	resp.RequiredBuckets = f.Required.Strings()
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleUpdate handles PUT /v1/settings.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	snap, err := h.service.Apply(ctx, req.toUpdate())
	if err != nil {
		h.logger.WarnContext(ctx, "settings update rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(snap))
}
