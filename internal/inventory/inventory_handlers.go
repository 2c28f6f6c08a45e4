package inventory

import (
	"net/http"

	"github.com/RustySnipers/optio/internal/httpx"
	"github.com/RustySnipers/optio/models"

	"github.com/gorilla/mux"
)

type InventoryHandlers struct {
	Service *InventoryService
}

func NewInventoryHandlers(service *InventoryService) *InventoryHandlers {
	return &InventoryHandlers{Service: service}
}

// ListAssets returns all assets for a client
func (h *InventoryHandlers) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.Service.ListAssets(r.Context(), mux.Vars(r)["clientId"])
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if assets == nil {
		assets = []*models.Asset{}
	}
	httpx.WriteJSON(w, http.StatusOK, assets)
}

// GetAsset returns one asset by ID
func (h *InventoryHandlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.Service.GetAsset(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, asset)
}

// UpdateAsset applies operator edits to an asset
func (h *InventoryHandlers) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	var update AssetUpdate
	if err := httpx.DecodeJSON(r, &update); err != nil {
		httpx.WriteError(w, err)
		return
	}

	asset, err := h.Service.UpdateAsset(r.Context(), mux.Vars(r)["id"], update)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, asset)
}

// DeleteAsset removes an asset from the inventory
func (h *InventoryHandlers) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteAsset(r.Context(), mux.Vars(r)["id"]); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateGroupRequest is the request body for group creation
type CreateGroupRequest struct {
	ClientID    string `json:"clientId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateGroup creates a new asset group
func (h *InventoryHandlers) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	group, err := h.Service.CreateGroup(r.Context(), req.ClientID, req.Name, req.Description)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, group)
}

// ListGroups returns all asset groups for a client
func (h *InventoryHandlers) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Service.ListGroups(r.Context(), mux.Vars(r)["clientId"])
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if groups == nil {
		groups = []*models.AssetGroup{}
	}
	httpx.WriteJSON(w, http.StatusOK, groups)
}

// GroupMemberRequest is the request body for membership changes
type GroupMemberRequest struct {
	AssetID string `json:"assetId"`
}

// AddGroupMember adds an asset to a group
func (h *InventoryHandlers) AddGroupMember(w http.ResponseWriter, r *http.Request) {
	var req GroupMemberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	group, err := h.Service.AddToGroup(r.Context(), mux.Vars(r)["id"], req.AssetID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, group)
}

// RemoveGroupMember removes an asset from a group
func (h *InventoryHandlers) RemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	group, err := h.Service.RemoveFromGroup(r.Context(), vars["id"], vars["assetId"])
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, group)
}

// DeleteGroup removes a group, leaving member assets intact
func (h *InventoryHandlers) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteGroup(r.Context(), mux.Vars(r)["id"]); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetNetworkStats returns the inventory dashboard aggregate
func (h *InventoryHandlers) GetNetworkStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.GetNetworkStats(r.Context(), mux.Vars(r)["clientId"])
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}
