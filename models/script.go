package models

import "time"

// TemplateInfo describes one script template in the registry catalog.
type TemplateInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	RequiredVars []string `json:"requiredVars"`
	Path         string   `json:"path"`
}

// Template is a loaded template: catalog entry plus body. Immutable
// once the registry is built.
type Template struct {
	Info TemplateInfo
	Body string
}

// ScriptConfigOptions is the per-request configuration bag for client
// script generation. Constructed fresh per request, no identity.
type ScriptConfigOptions struct {
	EnableWinRM           bool     `json:"enableWinrm"`
	ConfigureDNS          bool     `json:"configureDns"`
	DNSServers            []string `json:"dnsServers,omitempty"`
	InstallAgent          bool     `json:"installAgent"`
	AgentInstaller        string   `json:"agentInstaller,omitempty"`
	EnableFirewallLogging bool     `json:"enableFirewallLogging"`
	CustomCommands        []string `json:"customCommands,omitempty"`
}

// ValidationResult is the structured outcome of configuration
// validation, returned as data so the UI can render field feedback.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// GeneratedScript is a persisted rendering artifact.
type GeneratedScript struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"clientId"`
	Template    string    `json:"template"`
	Content     string    `json:"content"`
	OutputPath  string    `json:"outputPath,omitempty"`
	Warnings    []string  `json:"warnings"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// GenerateScriptResponse crosses the command boundary after client
// script generation.
type GenerateScriptResponse struct {
	Success       bool     `json:"success"`
	OutputPath    string   `json:"outputPath"`
	ScriptContent string   `json:"scriptContent"`
	ScriptID      string   `json:"scriptId"`
	GeneratedAt   string   `json:"generatedAt"`
	Warnings      []string `json:"warnings"`
}

// AgentScriptResponse crosses the command boundary after agent
// callback script generation.
type AgentScriptResponse struct {
	Success       bool     `json:"success"`
	ScriptContent string   `json:"scriptContent"`
	ScriptID      string   `json:"scriptId"`
	GeneratedAt   string   `json:"generatedAt"`
	Warnings      []string `json:"warnings"`
}

// Client is the engagement scope that assets, scans, and generated
// scripts belong to.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
