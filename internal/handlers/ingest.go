package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/crickview/prediction-api/internal/models"
)

// IngestRecords handles POST /api/v1/ingest/records
// @Summary Ingest Innings Records
// @Description Accepts newline-separated JSON innings records from stat feeds
// @Tags Ingestion
// @Accept json
// @Produce json
// @Security FeedToken
// @Param body body []models.RawStatRecord true "Records"
// @Success 202 {object} map[string]string "Accepted"
// @Failure 400 {object} map[string]string "Bad Request"
// @Router /ingest/records [post]
func (h *Handler) IngestRecords(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.errorResponse(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	defer r.Body.Close()

	lines := strings.Split(string(body), "\n")
	processed := 0
	rejected := 0
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var record models.RawStatRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			h.logger.Warnw("Failed to unmarshal record in batch", "error", err, "lineNum", i)
			rejected++
			continue
		}

		// A record outside the league bounds is a feed bug, not data.
		if err := h.validator.Struct(&record); err != nil {
			h.logger.Warnw("Validation failed for record", "error", err, "lineNum", i, "player_id", record.PlayerID)
			rejected++
			continue
		}

		if !h.pool.Enqueue(&record) {
			h.logger.Warn("Worker pool queue full, dropping remaining records in batch")
			break
		}
		processed++
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "accepted",
		"processed": processed,
		"rejected":  rejected,
	})
}
