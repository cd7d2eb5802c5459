package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/blockedby/tg-relay/internal/progress"
	"github.com/blockedby/tg-relay/internal/transfer"
)

// TransferManager is the part of transfer.Manager the api needs.
type TransferManager interface {
	Current() *transfer.Job
	Snapshot() progress.State
	Cancel() bool
}

// TransferHandler handles transfer status and control requests
type TransferHandler struct {
	manager TransferManager
}

// NewTransferHandler creates a new TransferHandler
func NewTransferHandler(manager TransferManager) *TransferHandler {
	return &TransferHandler{manager: manager}
}

// StatusResponse is returned by GET /api/v1/transfer/status
type StatusResponse struct {
	Status    string          `json:"status"` // idle or running
	JobID     string          `json:"job_id,omitempty"`
	StartedAt *time.Time      `json:"started_at,omitempty"`
	StartLink string          `json:"start_link,omitempty"`
	EndLink   string          `json:"end_link,omitempty"`
	State     *progress.State `json:"state,omitempty"`
	Text      string          `json:"text"`
}

// Status handles GET /api/v1/transfer/status
func (h *TransferHandler) Status(w http.ResponseWriter, _ *http.Request) {
	job := h.manager.Current()
	if job == nil {
		respondJSON(w, http.StatusOK, StatusResponse{
			Status: "idle",
			Text:   progress.ReadyText,
		})
		return
	}

	state := h.manager.Snapshot()
	startedAt := job.StartedAt
	respondJSON(w, http.StatusOK, StatusResponse{
		Status:    "running",
		JobID:     job.ID.String(),
		StartedAt: &startedAt,
		StartLink: job.StartLink,
		EndLink:   job.EndLink,
		State:     &state,
		Text:      progress.Render(state),
	})
}

// Cancel handles DELETE /api/v1/transfer/current
func (h *TransferHandler) Cancel(w http.ResponseWriter, _ *http.Request) {
	if !h.manager.Cancel() {
		respondError(w, http.StatusConflict, "no transfer running")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"message": "cancellation requested",
	})
}

// helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		_ = err // Client disconnected
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
