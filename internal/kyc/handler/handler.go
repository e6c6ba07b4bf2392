package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"vericore/internal/kyc/capture"
	id "vericore/pkg/domain"
	"vericore/pkg/platform/httputil"
	"vericore/pkg/requestcontext"
)

// Service defines the session operations the wizard endpoints need.
type Service interface {
	Start(ctx context.Context) (capture.View, error)
	Get(ctx context.Context, sessionID id.SessionID) (capture.View, error)
	Dispatch(ctx context.Context, sessionID id.SessionID, ev capture.Event) (capture.View, error)
	Await(ctx context.Context, sessionID id.SessionID) (capture.View, error)
	End(ctx context.Context, sessionID id.SessionID) error
}

// MaxWait bounds the long-poll of GET /v1/sessions/{id}?wait=1.
const MaxWait = 35 * time.Second

// Handler wires the capture wizard to HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the wizard endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/sessions", h.HandleStart)
	r.Route("/v1/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Delete("/", h.HandleEnd)
		r.Post("/select", h.HandleSelect)
		r.Post("/captures", h.HandleCapture)
		r.Post("/camera-denied", h.HandleCameraDenied)
		r.Post("/continue", h.simple(capture.Continue{}))
		r.Post("/retry", h.simple(capture.Retry{}))
		r.Post("/proceed", h.simple(capture.Proceed{}))
		r.Post("/resume", h.simple(capture.ResumeFromCooldown{}))
		r.Post("/back", h.simple(capture.Back{}))
	})
}

// HandleStart handles POST /v1/sessions.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, err := h.service.Start(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start session",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, v)
}

// HandleGet handles GET /v1/sessions/{id}. With ?wait=1 it blocks until the
// outstanding model call, if any, has been applied.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var (
		v   capture.View
		err error
	)
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		waitCtx, cancel := context.WithTimeout(ctx, MaxWait)
		defer cancel()
		v, err = h.service.Await(waitCtx, sessionID)
	} else {
		v, err = h.service.Get(ctx, sessionID)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

// HandleEnd handles DELETE /v1/sessions/{id}.
func (h *Handler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if err := h.service.End(r.Context(), sessionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSelect handles POST /v1/sessions/{id}/select.
func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SelectRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.dispatch(w, r, sessionID, capture.SelectDocument{Type: req.Document})
}

// HandleCapture handles POST /v1/sessions/{id}/captures.
func (h *Handler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CaptureRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.dispatch(w, r, sessionID, capture.CapturePhoto{Image: req.image()})
}

// HandleCameraDenied handles POST /v1/sessions/{id}/camera-denied.
func (h *Handler) HandleCameraDenied(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CameraDeniedRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.dispatch(w, r, sessionID, capture.CameraFailed{Reason: req.Reason})
}

// simple builds a handler for body-less events.
func (h *Handler) simple(ev capture.Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := h.sessionID(w, r)
		if !ok {
			return
		}
		h.dispatch(w, r, sessionID, ev)
	}
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, sessionID id.SessionID, ev capture.Event) {
	ctx := r.Context()
	v, err := h.service.Dispatch(ctx, sessionID, ev)
	if err != nil {
		h.logger.WarnContext(ctx, "capture event rejected",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", sessionID.String(),
			"event", string(ev.Kind()),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (id.SessionID, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.SessionID{}, false
	}
	return sessionID, true
}
