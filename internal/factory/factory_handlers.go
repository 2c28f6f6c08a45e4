package factory

import (
	"net/http"
	"strconv"

	"github.com/RustySnipers/optio/internal/httpx"
	"github.com/RustySnipers/optio/models"

	"github.com/gorilla/mux"
)

type FactoryHandlers struct {
	Service *FactoryService
}

func NewFactoryHandlers(service *FactoryService) *FactoryHandlers {
	return &FactoryHandlers{Service: service}
}

// ListTemplates returns the template catalog
func (h *FactoryHandlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.Service.ListTemplates())
}

// PreviewRequest is the request body for script preview
type PreviewRequest struct {
	TemplateName string                     `json:"templateName"`
	ClientName   string                     `json:"clientName"`
	TargetSubnet string                     `json:"targetSubnet"`
	Config       models.ScriptConfigOptions `json:"config"`
}

// GetScriptPreview renders a template without persisting anything
func (h *FactoryHandlers) GetScriptPreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	content, err := h.Service.Preview(req.TemplateName, req.ClientName, req.TargetSubnet, req.Config)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"content": content})
}

// ValidateConfigRequest is the request body for configuration validation
type ValidateConfigRequest struct {
	TemplateName string                     `json:"templateName"`
	ClientName   string                     `json:"clientName"`
	TargetSubnet string                     `json:"targetSubnet"`
	Config       models.ScriptConfigOptions `json:"config"`
}

// ValidateConfig checks a configuration and returns structured field feedback
func (h *FactoryHandlers) ValidateConfig(w http.ResponseWriter, r *http.Request) {
	var req ValidateConfigRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	result, err := h.Service.Validate(req.TemplateName, req.ClientName, req.TargetSubnet, req.Config)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, result)
}

// GenerateScriptRequest is the request body for client script generation
type GenerateScriptRequest struct {
	ClientID     string                     `json:"clientId"`
	ClientName   string                     `json:"clientName"`
	TargetSubnet string                     `json:"targetSubnet"`
	TemplateName string                     `json:"templateName"`
	Config       models.ScriptConfigOptions `json:"config"`
}

// GenerateClientScript renders, writes, and records a provisioning script
func (h *FactoryHandlers) GenerateClientScript(w http.ResponseWriter, r *http.Request) {
	var req GenerateScriptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	resp, err := h.Service.Generate(r.Context(), req.TemplateName, req.ClientID, req.ClientName, req.TargetSubnet, req.Config)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// GenerateAgentScriptRequest is the request body for agent callback script
// generation. Optional fields are pointers so absent and zero-valued
// inputs stay distinguishable.
type GenerateAgentScriptRequest struct {
	ClientIP          string `json:"clientIp"`
	AuthToken         string `json:"authToken,omitempty"`
	CallbackPort      *int   `json:"callbackPort,omitempty"`
	UseTLS            *bool  `json:"useTls,omitempty"`
	HeartbeatInterval *int   `json:"heartbeatInterval,omitempty"`
}

// GenerateAgentScript renders the callback script with connection
// parameters embedded
func (h *FactoryHandlers) GenerateAgentScript(w http.ResponseWriter, r *http.Request) {
	var req GenerateAgentScriptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	params := AgentScriptParams{
		ClientIP:          req.ClientIP,
		AuthToken:         req.AuthToken,
		CallbackPort:      defaultCallbackPort,
		UseTLS:            true,
		HeartbeatInterval: defaultHeartbeatInterval,
	}
	if req.CallbackPort != nil {
		params.CallbackPort = *req.CallbackPort
	}
	if req.UseTLS != nil {
		params.UseTLS = *req.UseTLS
	}
	if req.HeartbeatInterval != nil {
		params.HeartbeatInterval = *req.HeartbeatInterval
	}

	resp, err := h.Service.GenerateAgentScript(params)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// ListGeneratedScripts returns recent generation records for a client
func (h *FactoryHandlers) ListGeneratedScripts(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	scripts, err := h.Service.ListGenerated(r.Context(), clientID, limit)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if scripts == nil {
		scripts = []*models.GeneratedScript{}
	}

	httpx.WriteJSON(w, http.StatusOK, scripts)
}
