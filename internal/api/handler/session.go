package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/duelsync-go/internal/api/apierr"
	"github.com/mcoot/duelsync-go/internal/api/response"
	"github.com/mcoot/duelsync-go/internal/model"
)

// Directory is the read side of the session directory
type Directory interface {
	List(ctx context.Context) ([]*model.SessionRecord, error)
	Get(ctx context.Context, id model.SessionID) (*model.SessionRecord, error)
	Ping(ctx context.Context) error
}

// SessionHandler serves published session records
type SessionHandler struct {
	directory Directory
	logger    *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(directory Directory, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{directory: directory, logger: logger}
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.directory.List(r.Context())
	if err != nil {
		h.logger.Error("list sessions failed", slog.String("error", err.Error()))
		WriteError(w, apierr.NewUnavailableError())
		return
	}
	response.JSON(w, http.StatusOK, response.SessionListFromModel(records))
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(mux.Vars(r)["id"])
	if id == "" {
		WriteError(w, model.ErrMissingSessionID)
		return
	}

	rec, err := h.directory.Get(r.Context(), id)
	if err != nil {
		if apierr.Status(err) == http.StatusInternalServerError {
			h.logger.Error("get session failed",
				slog.String("session_id", string(id)),
				slog.String("error", err.Error()))
		}
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.SessionFromModel(rec))
}

// Health handles GET /api/v1/health
func (h *SessionHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.directory.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", slog.String("error", err.Error()))
		response.JSON(w, http.StatusServiceUnavailable, response.Health{Status: response.HealthDegraded, Storage: err.Error()})
		return
	}
	response.JSON(w, http.StatusOK, response.Health{Status: response.HealthOK, Storage: response.HealthOK})
}
