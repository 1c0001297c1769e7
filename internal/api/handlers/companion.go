package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Harshitk-cp/kindred/internal/domain"
	"github.com/Harshitk-cp/kindred/internal/service"
)

type CompanionHandler struct {
	svc *service.Companion
}

func NewCompanionHandler(svc *service.Companion) *CompanionHandler {
	return &CompanionHandler{svc: svc}
}

type chatRequest struct {
	Text string `json:"text"`
}

type likeRequest struct {
	Post string `json:"post"`
}

type commentRequest struct {
	Post    string `json:"post"`
	Comment string `json:"comment"`
}

func (h *CompanionHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.Chat(r.Context(), req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *CompanionHandler) Gift(w http.ResponseWriter, r *http.Request) {
	giftID := strings.TrimSpace(chi.URLParam(r, "id"))
	if giftID == "" {
		writeError(w, http.StatusBadRequest, "gift id is required")
		return
	}

	res, err := h.svc.Gift(r.Context(), giftID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *CompanionHandler) Like(w http.ResponseWriter, r *http.Request) {
	var req likeRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Post) == "" {
		writeError(w, http.StatusBadRequest, "post is required")
		return
	}

	res, err := h.svc.Like(r.Context(), req.Post)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *CompanionHandler) Comment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Comment) == "" {
		writeError(w, http.StatusBadRequest, "comment is required")
		return
	}

	res, err := h.svc.Comment(r.Context(), req.Post, req.Comment)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *CompanionHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.State())
}

type relationshipResponse struct {
	domain.RelationshipState
	Progress domain.StageProgress `json:"progress"`
	Tone     string               `json:"tone"`
}

func (h *CompanionHandler) Relationship(w http.ResponseWriter, r *http.Request) {
	rel := h.svc.Relationship()
	band := domain.StageFor(rel.Score)
	writeJSON(w, http.StatusOK, relationshipResponse{
		RelationshipState: rel,
		Progress:          domain.ProgressFor(rel.Score),
		Tone:              band.Tone,
	})
}

type tokensResponse struct {
	Tokens int          `json:"tokens"`
	Stage  domain.Stage `json:"stage"`
}

func (h *CompanionHandler) Tokens(w http.ResponseWriter, r *http.Request) {
	rel := h.svc.Relationship()
	writeJSON(w, http.StatusOK, tokensResponse{
		Tokens: rel.Tokens,
		Stage:  domain.StageFor(rel.Score).Stage,
	})
}

func (h *CompanionHandler) Gifts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"gifts": h.svc.Gifts()})
}
