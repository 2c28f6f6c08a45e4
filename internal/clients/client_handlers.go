package clients

import (
	"net/http"

	"github.com/RustySnipers/optio/internal/httpx"
	"github.com/RustySnipers/optio/models"

	"github.com/gorilla/mux"
)

type ClientHandlers struct {
	Service *ClientService
}

func NewClientHandlers(service *ClientService) *ClientHandlers {
	return &ClientHandlers{Service: service}
}

// CreateClientRequest is the request body for client creation
type CreateClientRequest struct {
	Name string `json:"name"`
}

func (h *ClientHandlers) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	client, err := h.Service.Create(r.Context(), req.Name)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, client)
}

func (h *ClientHandlers) GetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.Service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, client)
}

func (h *ClientHandlers) ListClients(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if list == nil {
		list = []*models.Client{}
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *ClientHandlers) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
