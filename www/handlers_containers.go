package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/antomihe/SustainableCity/lifecycle"
	"github.com/antomihe/SustainableCity/search"
)

func (h *Handlers) apiListContainers(w http.ResponseWriter, r *http.Request) {
	containers, err := h.engine.Lifecycle().List()
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.jsonOK(w, nonNil(containers))
}

func (h *Handlers) apiLiveContainers(w http.ResponseWriter, r *http.Request) {
	containers, err := h.engine.LiveState().All()
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.jsonOK(w, containers)
}

func (h *Handlers) apiGetContainer(w http.ResponseWriter, r *http.Request) {
	c, err := h.engine.Lifecycle().Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.jsonOK(w, c)
}

func (h *Handlers) apiSearchContainers(w http.ResponseWriter, r *http.Request) {
	var f search.Filters
	if err := decodeJSON(r, &f); err != nil {
		h.writeErr(w, r, err)
		return
	}
	results, err := h.engine.Search().Search(f)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.jsonOK(w, results)
}

func (h *Handlers) apiCreateContainer(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeErr(w, r, err)
		return
	}
	c, err := h.engine.Lifecycle().Create(in)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	log.WithField("admin", h.getUsername(r)).Infof("container %s created", c.ID)
	h.jsonStatus(w, http.StatusCreated, c)
}

func (h *Handlers) apiUpdateContainer(w http.ResponseWriter, r *http.Request) {
	var p lifecycle.Patch
	if err := decodeJSON(r, &p); err != nil {
		h.writeErr(w, r, err)
		return
	}
	c, err := h.engine.Lifecycle().Update(chi.URLParam(r, "id"), p)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.jsonOK(w, c)
}

func (h *Handlers) apiUpdateContainerStatus(w http.ResponseWriter, r *http.Request) {
	var p lifecycle.StatusPatch
	if err := decodeJSON(r, &p); err != nil {
		h.writeErr(w, r, err)
		return
	}
	c, err := h.engine.Lifecycle().UpdateStatus(chi.URLParam(r, "id"), p)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.jsonOK(w, c)
}

func (h *Handlers) apiRepairContainer(w http.ResponseWriter, r *http.Request) {
	c, err := h.engine.Lifecycle().Repair(chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.jsonOK(w, c)
}

func (h *Handlers) apiDeleteContainer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.engine.Lifecycle().Delete(id); err != nil {
		h.writeErr(w, r, err)
		return
	}
	log.WithField("admin", h.getUsername(r)).Infof("container %s deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
