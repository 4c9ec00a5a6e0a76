package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/antomihe/SustainableCity/store"
	"github.com/antomihe/SustainableCity/validation"
)

type assignContainersRequest struct {
	ContainerIDs []string `json:"containerIds" validate:"required"`
}

type assignOperatorsRequest struct {
	OperatorIDs []string `json:"operatorIds" validate:"required"`
}

type createOperatorRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func (h *Handlers) apiOperatorContainers(w http.ResponseWriter, r *http.Request) {
	containers, err := h.engine.Assignments().ContainersForOperator(chi.URLParam(r, "operatorID"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.jsonOK(w, nonNil(containers))
}

func (h *Handlers) apiAssignContainers(w http.ResponseWriter, r *http.Request) {
	var req assignContainersRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	rows, err := h.engine.Assignments().AssignContainersToOperator(chi.URLParam(r, "operatorID"), req.ContainerIDs)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.jsonOK(w, nonNil(rows))
}

func (h *Handlers) apiContainerOperators(w http.ResponseWriter, r *http.Request) {
	users, err := h.engine.Assignments().OperatorsForContainer(chi.URLParam(r, "containerID"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.jsonOK(w, nonNil(users))
}

func (h *Handlers) apiAssignOperators(w http.ResponseWriter, r *http.Request) {
	var req assignOperatorsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	rows, err := h.engine.Assignments().AssignOperatorsToContainer(chi.URLParam(r, "containerID"), req.OperatorIDs)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.jsonOK(w, nonNil(rows))
}

func (h *Handlers) apiRemoveAssignment(w http.ResponseWriter, r *http.Request) {
	err := h.engine.Assignments().Remove(chi.URLParam(r, "operatorID"), chi.URLParam(r, "containerID"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) apiListOperators(w http.ResponseWriter, r *http.Request) {
	users, err := h.engine.DB().ListUsersByRole(store.RoleOperator)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.jsonOK(w, nonNil(users))
}

func (h *Handlers) apiCreateOperator(w http.ResponseWriter, r *http.Request) {
	var req createOperatorRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	u := &store.User{Name: req.Name, Email: req.Email, Role: store.RoleOperator}
	if err := h.engine.DB().CreateUser(u); err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.jsonStatus(w, http.StatusCreated, u)
}
