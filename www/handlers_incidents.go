package www

import (
	"net/http"

	"github.com/antomihe/SustainableCity/incidents"
)

func (h *Handlers) apiReportIncident(w http.ResponseWriter, r *http.Request) {
	var report incidents.Report
	if err := decodeJSON(r, &report); err != nil {
		h.writeErr(w, r, err)
		return
	}
	c, err := h.engine.Incidents().Report(report)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.jsonOK(w, c)
}

func (h *Handlers) apiListIncidents(w http.ResponseWriter, r *http.Request) {
	containers, err := h.engine.Incidents().List()
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.jsonOK(w, containers)
}
