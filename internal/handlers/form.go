package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetPlayerForm returns the descriptive recent-form summary for a player
// @Summary Get Player Form
// @Tags Predictions
// @Produce json
// @Param playerId path string true "Player ID"
// @Success 200 {object} models.PlayerForm
// @Router /players/{playerId}/form [get]
func (h *Handler) GetPlayerForm(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerId")
	if playerID == "" {
		h.errorResponse(w, http.StatusBadRequest, "Player ID is required")
		return
	}

	form, err := h.form.GetPlayerForm(r.Context(), playerID)
	if err != nil {
		h.logger.Errorw("Failed to get player form", "error", err, "player_id", playerID)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to get form")
		return
	}

	h.jsonResponse(w, http.StatusOK, form)
}
