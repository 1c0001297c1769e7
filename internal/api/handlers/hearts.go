package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/kindred/internal/service"
)

type HeartsHandler struct {
	svc *service.Companion
}

func NewHeartsHandler(svc *service.Companion) *HeartsHandler {
	return &HeartsHandler{svc: svc}
}

type heartsRequest struct {
	Points int    `json:"points"`
	Reason string `json:"reason,omitempty"`
}

type heartsResponse struct {
	Total int `json:"total"`
}

func (h *HeartsHandler) Collect(w http.ResponseWriter, r *http.Request) {
	req := heartsRequest{Points: 1}
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Points <= 0 {
		writeServiceError(w, service.ErrInvalidPoints)
		return
	}
	if req.Reason == "" {
		req.Reason = "collected heart"
	}

	total, err := h.svc.CollectHeart(r.Context(), req.Points, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, heartsResponse{Total: total})
}

func (h *HeartsHandler) Spend(w http.ResponseWriter, r *http.Request) {
	var req heartsRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason == "" {
		req.Reason = "spent hearts"
	}

	total, err := h.svc.SpendHearts(r.Context(), req.Points, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, heartsResponse{Total: total})
}

func (h *HeartsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Heart().Hearts())
}
