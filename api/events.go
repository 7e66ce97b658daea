package api

import (
	"net/http"
	"strconv"

	"github.com/garnizeh/jobcard/internal/notify"
)

// EventSource returns buffered notifications newer than a sequence number.
type EventSource interface {
	Since(seq uint64) []notify.Event
}

type EventsHandler struct {
	events EventSource
}

func NewEventsHandler(events EventSource) *EventsHandler {
	return &EventsHandler{events: events}
}

// List returns notifications after ?since= (default: all buffered).
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		since = n
	}

	evs := h.events.Since(since)
	if evs == nil {
		evs = []notify.Event{}
	}
	writeJSON(w, evs, http.StatusOK)
}
