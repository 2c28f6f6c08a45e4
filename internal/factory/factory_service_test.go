package factory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RustySnipers/optio/db"
	"github.com/RustySnipers/optio/internal/apperror"
	"github.com/RustySnipers/optio/internal/config"
	"github.com/RustySnipers/optio/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *FactoryService {
	t.Helper()
	registry, err := NewRegistry("")
	require.NoError(t, err)
	return NewFactoryService(registry, nil, &config.Config{ConsultantIP: "10.0.0.1"}, nil)
}

func TestRegistry_ListAndGet(t *testing.T) {
	registry, err := NewRegistry("")
	require.NoError(t, err)

	templates := registry.ListTemplates()
	assert.NotEmpty(t, templates)

	names := make([]string, len(templates))
	for i, tmpl := range templates {
		names[i] = tmpl.Name
	}
	assert.Contains(t, names, "smart_prep")
	assert.Contains(t, names, "winrm_setup")
	assert.Contains(t, names, "security_baseline")
	assert.Contains(t, names, "agent_deploy")

	_, err = registry.GetTemplate("does_not_exist")
	assert.Error(t, err)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestRegistry_CustomTemplates(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "custom_audit.ps1"), []byte("Write-Host 'audit {{CLIENT_NAME}}'"), 0644)
	require.NoError(t, err)

	registry, err := NewRegistry(dir)
	require.NoError(t, err)

	tmpl, err := registry.GetTemplate("custom_audit")
	require.NoError(t, err)
	assert.Equal(t, "Custom", tmpl.Info.Category)
	assert.Contains(t, tmpl.Body, "audit")
}

func TestPreview_Idempotent(t *testing.T) {
	svc := newTestService(t)

	cfg := models.ScriptConfigOptions{EnableWinRM: true}
	first, err := svc.Preview("smart_prep", "Acme Corp", "192.168.1.0/24", cfg)
	require.NoError(t, err)
	second, err := svc.Preview("smart_prep", "Acme Corp", "192.168.1.0/24", cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "Acme Corp")
	assert.Contains(t, first, "192.168.1.0/24")
	assert.Contains(t, first, "10.0.0.1")
	assert.Contains(t, first, previewMarker)
	assert.NotContains(t, first, "{{CLIENT_NAME}}")
}

func TestPreview_UnknownTemplate(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Preview("missing", "Acme Corp", "192.168.1.0/24", models.ScriptConfigOptions{})
	assert.Error(t, err)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestGenerate_PersistsScriptAndWritesFile(t *testing.T) {
	dir := t.TempDir()
	sqlDB, err := db.ConnectToSQLite(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	defer sqlDB.Close()
	require.NoError(t, db.InitializeSchema(sqlDB))

	factoryRepos := db.NewRepositoryFactory(sqlDB, "test")
	clientRepo := factoryRepos.NewClientRepository()
	client, err := clientRepo.CreateOrUpdate(context.Background(), &models.Client{Name: "Acme Corp"})
	require.NoError(t, err)

	registry, err := NewRegistry("")
	require.NoError(t, err)
	svc := NewFactoryService(registry, factoryRepos.NewScriptRepository(), &config.Config{
		ConsultantIP: "10.0.0.1",
		OutputDir:    filepath.Join(dir, "scripts"),
	}, db.NewDBManager(sqlDB))

	resp, err := svc.Generate(context.Background(), "smart_prep", client.ID, "Acme Corp", "192.168.1.0/24", models.ScriptConfigOptions{})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.ScriptID)
	assert.Contains(t, resp.ScriptContent, "Acme Corp")
	assert.Contains(t, resp.Warnings, "DNS servers not configured; using client defaults")

	written, err := os.ReadFile(resp.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, resp.ScriptContent, string(written))
	assert.True(t, strings.HasPrefix(filepath.Base(resp.OutputPath), "Acme_Corp_"))

	stored, err := factoryRepos.NewScriptRepository().FindByID(context.Background(), resp.ScriptID)
	require.NoError(t, err)
	assert.Equal(t, "smart_prep", stored.Template)
	assert.Equal(t, client.ID, stored.ClientID)
}

func TestGenerate_RejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	sqlDB, err := db.ConnectToSQLite(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	defer sqlDB.Close()
	require.NoError(t, db.InitializeSchema(sqlDB))

	factoryRepos := db.NewRepositoryFactory(sqlDB, "test")
	registry, err := NewRegistry("")
	require.NoError(t, err)
	svc := NewFactoryService(registry, factoryRepos.NewScriptRepository(), &config.Config{
		OutputDir: filepath.Join(dir, "scripts"),
	}, db.NewDBManager(sqlDB))

	_, err = svc.Generate(context.Background(), "smart_prep", "c1", "Acme; rm -rf /", "192.168.1.0/24", models.ScriptConfigOptions{})
	assert.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestGenerateAgentScript_SuppliedToken(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.GenerateAgentScript(AgentScriptParams{
		ClientIP:          "192.168.1.100",
		AuthToken:         "secret-token-123",
		CallbackPort:      443,
		UseTLS:            true,
		HeartbeatInterval: 30,
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Contains(t, resp.ScriptContent, "192.168.1.100")
	assert.Contains(t, resp.ScriptContent, "secret-token-123")
	assert.Empty(t, resp.Warnings)
}

func TestGenerateAgentScript_GeneratedTokenWarned(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.GenerateAgentScript(AgentScriptParams{
		ClientIP:          "192.168.1.100",
		CallbackPort:      443,
		UseTLS:            true,
		HeartbeatInterval: 30,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Warnings)
	tokenWarned := false
	for _, w := range resp.Warnings {
		if strings.Contains(w, "token") {
			tokenWarned = true
		}
	}
	assert.True(t, tokenWarned, "expected a warning about the generated token")
	assert.NotContains(t, resp.ScriptContent, `AuthToken = ""`)
}

func TestGenerateAgentScript_InvalidInput(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GenerateAgentScript(AgentScriptParams{CallbackPort: 443, UseTLS: true, HeartbeatInterval: 30})
	assert.Error(t, err, "missing IP should fail")

	_, err = svc.GenerateAgentScript(AgentScriptParams{ClientIP: "192.168.1.100", CallbackPort: 0, UseTLS: true, HeartbeatInterval: 30})
	assert.Error(t, err, "port 0 should fail")

	_, err = svc.GenerateAgentScript(AgentScriptParams{ClientIP: "192.168.1.100", CallbackPort: 70000, UseTLS: true, HeartbeatInterval: 30})
	assert.Error(t, err, "port above range should fail")
}

func TestGenerateAgentScript_Warnings(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.GenerateAgentScript(AgentScriptParams{
		ClientIP:          "192.168.1.100",
		AuthToken:         "tok",
		CallbackPort:      9001,
		UseTLS:            false,
		HeartbeatInterval: 1,
	})
	require.NoError(t, err)

	joined := strings.Join(resp.Warnings, " | ")
	assert.Contains(t, joined, "TLS is disabled")
	assert.Contains(t, joined, "Non-standard callback port 9001")
	assert.Contains(t, resp.ScriptContent, "HeartbeatInterval = 5")
}
