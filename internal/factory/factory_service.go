package factory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/RustySnipers/optio/db"
	"github.com/RustySnipers/optio/internal/apperror"
	"github.com/RustySnipers/optio/internal/config"
	"github.com/RustySnipers/optio/models"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Preview output substitutes fixed markers for the per-generation
// fields so identical inputs render byte-identical text.
const previewMarker = "PREVIEW"

const (
	defaultCallbackPort      = 443
	alternateCallbackPort    = 8443
	minHeartbeatInterval     = 5
	maxHeartbeatInterval     = 3600
	defaultHeartbeatInterval = 30
)

var hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*$`)

// FactoryService renders provisioning and agent callback scripts from
// the template registry.
type FactoryService struct {
	Config       *config.Config
	Registry     *Registry
	Validator    *ConfigValidator
	Repository   db.ScriptRepository
	dbManager    *db.DBManager
	previewCache *lru.Cache[string, string]
}

// NewFactoryService creates a new FactoryService
func NewFactoryService(registry *Registry, scriptRepo db.ScriptRepository, cfg *config.Config, dbManager *db.DBManager) *FactoryService {
	cache, _ := lru.New[string, string](256)
	return &FactoryService{
		Config:       cfg,
		Registry:     registry,
		Validator:    NewConfigValidator(),
		Repository:   scriptRepo,
		dbManager:    dbManager,
		previewCache: cache,
	}
}

// ListTemplates returns the template catalog
func (s *FactoryService) ListTemplates() []models.TemplateInfo {
	return s.Registry.ListTemplates()
}

// Validate checks a configuration against the named template without
// rendering anything
func (s *FactoryService) Validate(templateName, clientName, targetSubnet string, config models.ScriptConfigOptions) (models.ValidationResult, error) {
	tmpl, err := s.Registry.GetTemplate(templateName)
	if err != nil {
		return models.ValidationResult{}, err
	}
	return s.Validator.Validate(tmpl, clientName, targetSubnet, config), nil
}

// Preview renders the named template without persisting anything.
// Identical inputs produce byte-identical output: the script ID and
// timestamp placeholders are substituted with a fixed marker.
func (s *FactoryService) Preview(templateName, clientName, targetSubnet string, config models.ScriptConfigOptions) (string, error) {
	key := previewCacheKey(templateName, clientName, targetSubnet, config)
	if cached, ok := s.previewCache.Get(key); ok {
		return cached, nil
	}

	tmpl, err := s.Registry.GetTemplate(templateName)
	if err != nil {
		return "", err
	}

	vars := s.buildVars("preview", clientName, targetSubnet, config)
	vars["SCRIPT_ID"] = previewMarker
	vars["GENERATED_AT"] = previewMarker

	content := render(tmpl.Body, vars)
	s.previewCache.Add(key, content)
	return content, nil
}

// Generate renders the named template, writes the script to the output
// directory, and persists the generation record. The configuration is
// re-validated here: the UI is expected to call Validate first, but the
// renderer does not trust that it did.
func (s *FactoryService) Generate(ctx context.Context, templateName, clientID, clientName, targetSubnet string, config models.ScriptConfigOptions) (*models.GenerateScriptResponse, error) {
	tmpl, err := s.Registry.GetTemplate(templateName)
	if err != nil {
		return nil, err
	}

	result := s.Validator.Validate(tmpl, clientName, targetSubnet, config)
	if !result.Valid {
		ve := apperror.Validation("configuration failed validation")
		ve.Details = strings.Join(result.Errors, "; ")
		return nil, ve
	}

	scriptID := uuid.New().String()
	generatedAt := time.Now().UTC()

	vars := s.buildVars(clientID, clientName, targetSubnet, config)
	vars["SCRIPT_ID"] = scriptID
	vars["GENERATED_AT"] = generatedAt.Format(time.RFC3339)

	content := render(tmpl.Body, vars)

	warnings := append([]string{}, result.Warnings...)
	if !config.ConfigureDNS {
		warnings = append(warnings, "DNS servers not configured; using client defaults")
	}

	if err := os.MkdirAll(s.Config.OutputDir, 0755); err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, err, "failed to create output directory")
	}
	filename := fmt.Sprintf("%s_%s.ps1", sanitizeFilename(clientName), generatedAt.Format("20060102_150405"))
	outputPath := filepath.Join(s.Config.OutputDir, filename)
	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, err, "failed to write generated script")
	}

	record := &models.GeneratedScript{
		ID:          scriptID,
		ClientID:    clientID,
		Template:    templateName,
		Content:     content,
		OutputPath:  outputPath,
		Warnings:    warnings,
		GeneratedAt: generatedAt,
	}
	if err := s.dbManager.CreateScript(s.Repository, ctx, record); err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "failed to persist generated script")
	}

	log.Info().
		Str("script_id", scriptID).
		Str("client", clientName).
		Str("template", templateName).
		Str("path", outputPath).
		Msg("Script generated")

	return &models.GenerateScriptResponse{
		Success:       true,
		OutputPath:    outputPath,
		ScriptContent: content,
		ScriptID:      scriptID,
		GeneratedAt:   generatedAt.Format(time.RFC3339),
		Warnings:      warnings,
	}, nil
}

// AgentScriptParams configures agent callback script generation.
type AgentScriptParams struct {
	ClientIP          string
	AuthToken         string
	CallbackPort      int
	UseTLS            bool
	HeartbeatInterval int
}

// GenerateAgentScript renders the agent callback script with the
// connection parameters embedded. When no auth token is supplied one is
// generated and the generation is reported as a warning so the caller
// can tell the secret was not operator-supplied.
func (s *FactoryService) GenerateAgentScript(params AgentScriptParams) (*models.AgentScriptResponse, error) {
	if strings.TrimSpace(params.ClientIP) == "" {
		return nil, apperror.Validation("Client IP is required")
	}
	if !isValidHost(params.ClientIP) {
		return nil, apperror.Validation("Invalid callback address: %s", params.ClientIP)
	}
	if params.CallbackPort < 1 || params.CallbackPort > 65535 {
		return nil, apperror.Validation("Callback port must be between 1 and 65535, got %d", params.CallbackPort)
	}

	warnings := []string{}

	token := params.AuthToken
	if token == "" {
		token = uuid.New().String()
		warnings = append(warnings, "Auth token was not supplied; a random token was generated. Record it now - it is embedded in the script and not retrievable later.")
	} else if strings.ContainsAny(token, "\"'`$\n\r") {
		return nil, apperror.Validation("Auth token contains characters that cannot be embedded safely")
	}

	interval := params.HeartbeatInterval
	if interval < minHeartbeatInterval {
		warnings = append(warnings, fmt.Sprintf("Heartbeat interval raised to %d seconds (minimum)", minHeartbeatInterval))
		interval = minHeartbeatInterval
	} else if interval > maxHeartbeatInterval {
		warnings = append(warnings, fmt.Sprintf("Heartbeat interval lowered to %d seconds (maximum)", maxHeartbeatInterval))
		interval = maxHeartbeatInterval
	}

	if !params.UseTLS {
		warnings = append(warnings, "TLS is disabled - connection will not be encrypted!")
	}
	if params.CallbackPort != defaultCallbackPort && params.CallbackPort != alternateCallbackPort {
		warnings = append(warnings, fmt.Sprintf("Non-standard callback port %d may be blocked by firewalls", params.CallbackPort))
	}

	body, err := agentTemplateBody()
	if err != nil {
		return nil, err
	}

	scriptID := uuid.New().String()
	generatedAt := time.Now().UTC()

	vars := map[string]string{
		"CLIENT_IP":          params.ClientIP,
		"AUTH_TOKEN":         token,
		"CALLBACK_PORT":      strconv.Itoa(params.CallbackPort),
		"USE_TLS":            strconv.FormatBool(params.UseTLS),
		"HEARTBEAT_INTERVAL": strconv.Itoa(interval),
		"SCRIPT_ID":          scriptID,
		"GENERATED_AT":       generatedAt.Format(time.RFC3339),
	}

	log.Info().Str("script_id", scriptID).Str("callback", params.ClientIP).Msg("Agent script generated")

	return &models.AgentScriptResponse{
		Success:       true,
		ScriptContent: render(body, vars),
		ScriptID:      scriptID,
		GeneratedAt:   generatedAt.Format(time.RFC3339),
		Warnings:      warnings,
	}, nil
}

// ListGenerated returns the most recent generation records for a client
func (s *FactoryService) ListGenerated(ctx context.Context, clientID string, limit int) ([]*models.GeneratedScript, error) {
	scripts, err := s.Repository.FindByClient(ctx, clientID, limit)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "failed to list generated scripts")
	}
	return scripts, nil
}

// buildVars assembles the substitution map shared by Preview and
// Generate. SCRIPT_ID and GENERATED_AT are set by the caller.
func (s *FactoryService) buildVars(clientID, clientName, targetSubnet string, config models.ScriptConfigOptions) map[string]string {
	customSection := "# No custom commands configured"
	if len(config.CustomCommands) > 0 {
		parts := make([]string, len(config.CustomCommands))
		for i, cmd := range config.CustomCommands {
			parts[i] = "# Custom command\n" + cmd
		}
		customSection = strings.Join(parts, "\n\n")
	}

	return map[string]string{
		"CLIENT_ID":               clientID,
		"CLIENT_NAME":             clientName,
		"TARGET_SUBNET":           targetSubnet,
		"CONSULTANT_IP":           s.consultantIP(),
		"ENABLE_WINRM":            strconv.FormatBool(config.EnableWinRM),
		"CONFIGURE_DNS":           strconv.FormatBool(config.ConfigureDNS),
		"DNS_SERVERS":             strings.Join(config.DNSServers, ","),
		"INSTALL_AGENT":           strconv.FormatBool(config.InstallAgent),
		"AGENT_INSTALLER":         config.AgentInstaller,
		"ENABLE_FIREWALL_LOGGING": strconv.FormatBool(config.EnableFirewallLogging),
		"CUSTOM_COMMANDS":         customSection,
	}
}

func (s *FactoryService) consultantIP() string {
	if s.Config.ConsultantIP != "" {
		return s.Config.ConsultantIP
	}
	if ip := detectLocalIP(); ip != "" {
		return ip
	}
	return "127.0.0.1"
}

// render substitutes every {{KEY}} placeholder present in vars. Unknown
// placeholders are left intact for visibility rather than blanked.
func render(body string, vars map[string]string) string {
	content := body
	for key, value := range vars {
		content = strings.ReplaceAll(content, "{{"+key+"}}", value)
	}
	return content
}

func previewCacheKey(templateName, clientName, targetSubnet string, config models.ScriptConfigOptions) string {
	configJSON, _ := json.Marshal(config)
	h := sha256.New()
	h.Write([]byte(templateName))
	h.Write([]byte{0})
	h.Write([]byte(clientName))
	h.Write([]byte{0})
	h.Write([]byte(targetSubnet))
	h.Write([]byte{0})
	h.Write(configJSON)
	return hex.EncodeToString(h.Sum(nil))
}

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			b.WriteRune(c)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func isValidHost(host string) bool {
	if net.ParseIP(host) != nil {
		return true
	}
	return len(host) <= 253 && hostnamePattern.MatchString(host)
}

// detectLocalIP finds the preferred outbound interface address. No
// packets are sent; UDP dial only resolves a route.
func detectLocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return ""
}
