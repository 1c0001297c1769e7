package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/kindred/internal/service"
)

const defaultRecallK = 5

type MemoryHandler struct {
	svc    *service.Companion
	logger *zap.Logger
}

func NewMemoryHandler(svc *service.Companion, logger *zap.Logger) *MemoryHandler {
	return &MemoryHandler{svc: svc, logger: logger}
}

type diaryRequest struct {
	Text string `json:"text"`
}

type churnRequest struct {
	MaxDreams int     `json:"max_dreams,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

func (h *MemoryHandler) Diary(w http.ResponseWriter, r *http.Request) {
	var req diaryRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.AddDiaryMemory(r.Context(), req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *MemoryHandler) Recall(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	k := defaultRecallK
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = n
	}

	res, err := h.svc.Recall(r.Context(), query, k)
	if err != nil {
		// Heart recall still succeeded; only the embedding side failed.
		h.logger.Warn("associative recall failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *MemoryHandler) Churn(w http.ResponseWriter, r *http.Request) {
	var req churnRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.Churn(r.Context(), req.MaxDreams, req.Threshold)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
