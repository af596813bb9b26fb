package httpx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/easonhq/eason/internal/auth"
	"github.com/easonhq/eason/internal/users"
)

type AdminHandler struct {
	Users  *users.Repo
	Tokens *auth.Tokens
	Log    *slog.Logger
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.Tokens.Require, auth.RequireRole(users.RoleAdmin))
		r.Get("/pending-wholesalers", h.pendingWholesalers)
		r.Put("/approve-wholesaler/{id}", h.approveWholesaler)
		r.Delete("/reject-wholesaler/{id}", h.rejectWholesaler)
	})
}

func (h *AdminHandler) pendingWholesalers(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Users.PendingWholesalers(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *AdminHandler) approveWholesaler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid user id")
		return
	}
	u, err := h.Users.ApproveWholesaler(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.Log.Info("wholesaler approved", "user_id", u.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Wholesaler approved successfully",
		"user":    u,
	})
}

func (h *AdminHandler) rejectWholesaler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := h.Users.RejectWholesaler(r.Context(), id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.Log.Info("wholesaler rejected", "user_id", id)
	writeMessage(w, http.StatusOK, "Wholesaler application rejected and removed")
}
