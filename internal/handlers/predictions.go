package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/crickview/prediction-api/internal/logic"
)

// GetPlayerPrediction returns model-backed performance forecasts for a player
// in a scheduled match
// @Summary Get Player Prediction
// @Tags Predictions
// @Accept json
// @Produce json
// @Param playerId path string true "Player ID"
// @Param matchId query string true "Scheduled Match ID"
// @Success 200 {object} models.PredictionResult
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 502 {object} map[string]string "Upstream Unavailable"
// @Router /predictions/player/{playerId} [get]
func (h *Handler) GetPlayerPrediction(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerId")
	if playerID == "" {
		h.errorResponse(w, http.StatusBadRequest, "Player ID is required")
		return
	}
	matchID := r.URL.Query().Get("matchId")
	if matchID == "" {
		h.errorResponse(w, http.StatusBadRequest, "matchId query parameter is required")
		return
	}

	result, err := h.prediction.PredictPlayer(r.Context(), playerID, matchID)
	if err != nil {
		if logic.NotFound(err) {
			h.errorResponse(w, http.StatusNotFound, "Player or match not found")
			return
		}
		var perr *logic.PredictionError
		if errors.As(err, &perr) && perr.Stage == "profile" {
			h.logger.Errorw("Upstream profile fetch failed", "error", err, "player_id", playerID)
			h.errorResponse(w, http.StatusBadGateway, "Player data temporarily unavailable")
			return
		}
		h.logger.Errorw("Failed to get player prediction", "error", err, "player_id", playerID, "match_id", matchID)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to get prediction")
		return
	}

	h.jsonResponse(w, http.StatusOK, result)
}

// GetUpcomingMatches lists the next scheduled matches
// @Summary Get Upcoming Matches
// @Tags Predictions
// @Produce json
// @Param limit query int false "Max matches (default 20)"
// @Success 200 {array} models.MatchContext
// @Router /matches/upcoming [get]
func (h *Handler) GetUpcomingMatches(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	matches, err := h.schedule.GetUpcomingMatches(r.Context(), limit)
	if err != nil {
		h.logger.Errorw("Failed to list upcoming matches", "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to list matches")
		return
	}

	h.jsonResponse(w, http.StatusOK, matches)
}
