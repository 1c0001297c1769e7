package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Harshitk-cp/kindred/internal/domain"
	"github.com/Harshitk-cp/kindred/internal/service"
)

type EventsHandler struct {
	svc *service.Companion
}

func NewEventsHandler(svc *service.Companion) *EventsHandler {
	return &EventsHandler{svc: svc}
}

type eventsResponse struct {
	Active   []domain.ActiveLifeEvent `json:"active"`
	Position domain.SchedulerPosition `json:"position"`
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	ev := h.svc.Events()
	writeJSON(w, http.StatusOK, eventsResponse{
		Active:   ev.Active(),
		Position: ev.Position(),
	})
}

// Force starts the event named in the path, or a random one on the bare route.
func (h *EventsHandler) Force(w http.ResponseWriter, r *http.Request) {
	ev, err := h.svc.ForceLifeEvent(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

type RoutineHandler struct {
	clock *service.RoutineClock
}

func NewRoutineHandler(clock *service.RoutineClock) *RoutineHandler {
	return &RoutineHandler{clock: clock}
}

type routineResponse struct {
	Mode     domain.RoutineMode   `json:"mode"`
	Current  string               `json:"current"`
	Schedule []domain.RoutineSlot `json:"schedule"`
}

func (h *RoutineHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, routineResponse{
		Mode:     h.clock.Mode(),
		Current:  h.clock.CurrentActivity(),
		Schedule: h.clock.Schedule(),
	})
}
