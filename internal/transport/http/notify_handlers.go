package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/alone-wolf/rutify/internal/dto"
	"github.com/alone-wolf/rutify/internal/service"

	"github.com/go-chi/chi/v5"
)

type notifyHandlers struct {
	svc service.NotifyService
}

func (h notifyHandlers) postNotify(w http.ResponseWriter, r *http.Request) {
	var in dto.NotifyInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.submit(w, r, in)
}

func (h notifyHandlers) getNotify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.submit(w, r, dto.NotifyInput{
		Message: q.Get("message"),
		Notify:  q.Get("notify"),
		Title:   q.Get("title"),
		Device:  q.Get("device"),
	})
}

func (h notifyHandlers) submit(w http.ResponseWriter, r *http.Request, in dto.NotifyInput) {
	if _, err := h.svc.Submit(r.Context(), in); err != nil {
		writeError(w, r, err, "")
		return
	}
	writeOK(w)
}

func (h notifyHandlers) list(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeData(w, items, dto.ListMeta{Total: total})
}

func (h notifyHandlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeData(w, stats, nil)
}

func (h notifyHandlers) deleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.DeleteAll(r.Context())
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeData(w, dto.DeletedResponse{DeletedCount: n}, nil)
}

func (h notifyHandlers) deleteOne(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "id: must be an integer")
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, "notify not found")
		return
	}
	writeOK(w)
}
