package scanner

import (
	"net/http"

	"github.com/RustySnipers/optio/internal/httpx"
	"github.com/RustySnipers/optio/models"

	"github.com/gorilla/mux"
)

type ScanHandlers struct {
	Service *ScannerService
}

func NewScanHandlers(service *ScannerService) *ScanHandlers {
	return &ScanHandlers{Service: service}
}

// ValidateTargetRequest is the request body for target validation
type ValidateTargetRequest struct {
	Target string `json:"target"`
}

// ValidateTarget classifies a target string without running anything
func (h *ScanHandlers) ValidateTarget(w http.ResponseWriter, r *http.Request) {
	var req ValidateTargetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ValidateTarget(req.Target))
}

// PreviewCommandRequest is the request body for command preview
type PreviewCommandRequest struct {
	Config models.ScanConfig `json:"config"`
}

// PreviewCommand renders the exact probe invocation for review
func (h *ScanHandlers) PreviewCommand(w http.ResponseWriter, r *http.Request) {
	var req PreviewCommandRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	preview := PreviewCommand(h.Service.Config.NmapBinary, req.Config)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"command": preview})
}

// ListScanTypes returns the scan profile catalog
func (h *ScanHandlers) ListScanTypes(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, ScanTypes())
}

// ListCommonPorts returns the well-known port reference list
func (h *ScanHandlers) ListCommonPorts(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, CommonPorts())
}

// GetNmapInfo reports probe tool availability and version
func (h *ScanHandlers) GetNmapInfo(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, CheckNmap(h.Service.Config.NmapBinary))
}

// CreateScanRequest is the request body for scan creation
type CreateScanRequest struct {
	ClientID string            `json:"clientId"`
	Name     string            `json:"name"`
	Config   models.ScanConfig `json:"config"`
}

// CreateScan validates, persists, and enqueues a scan job
func (h *ScanHandlers) CreateScan(w http.ResponseWriter, r *http.Request) {
	var req CreateScanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	scan, err := h.Service.CreateScan(r.Context(), req.ClientID, req.Name, req.Config)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, scan)
}

// ListScans returns all scans for a client, newest first
func (h *ScanHandlers) ListScans(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]
	scans, err := h.Service.ListScans(r.Context(), clientID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if scans == nil {
		scans = []*models.ScanJob{}
	}
	httpx.WriteJSON(w, http.StatusOK, scans)
}

// GetScan returns one scan job with its raw output
func (h *ScanHandlers) GetScan(w http.ResponseWriter, r *http.Request) {
	scan, err := h.Service.GetScan(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, scan)
}

// GetScanResults returns the parsed results of a completed scan
func (h *ScanHandlers) GetScanResults(w http.ResponseWriter, r *http.Request) {
	scan, err := h.Service.GetScan(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ParseResults(scan.ID, scan.RawOutput))
}

// CancelScan stops a queued or running scan
func (h *ScanHandlers) CancelScan(w http.ResponseWriter, r *http.Request) {
	scan, err := h.Service.CancelScan(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, scan)
}

// DeleteScan removes a terminal scan record
func (h *ScanHandlers) DeleteScan(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteScan(r.Context(), mux.Vars(r)["id"]); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
