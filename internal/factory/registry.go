package factory

import (
	"embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/RustySnipers/optio/internal/apperror"
	"github.com/RustySnipers/optio/models"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*.ps1
var embeddedTemplates embed.FS

// agentCallbackTemplate is rendered by GenerateAgentScript only; it is
// not part of the public catalog.
const agentCallbackTemplate = "agent_callback"

var builtinCatalog = []models.TemplateInfo{
	{
		Name:         "smart_prep",
		Description:  "Comprehensive client preparation script with state auditing",
		Category:     "Provisioning",
		RequiredVars: []string{"CLIENT_NAME", "TARGET_SUBNET"},
		Path:         "smart_prep.ps1",
	},
	{
		Name:         "winrm_setup",
		Description:  "WinRM configuration for remote management",
		Category:     "Remote Management",
		RequiredVars: []string{"CONSULTANT_IP"},
		Path:         "winrm_setup.ps1",
	},
	{
		Name:         "security_baseline",
		Description:  "Apply security baseline configurations",
		Category:     "Security",
		RequiredVars: []string{"CLIENT_NAME"},
		Path:         "security_baseline.ps1",
	},
	{
		Name:         "agent_deploy",
		Description:  "Deploy security monitoring agent",
		Category:     "Agents",
		RequiredVars: []string{"AGENT_INSTALLER"},
		Path:         "agent_deploy.ps1",
	},
}

// Registry holds the script template catalog. Built once at startup,
// read-only afterwards, safe for concurrent use without locking.
type Registry struct {
	templates map[string]*models.Template
	order     []string
}

// NewRegistry loads the built-in templates and any custom *.ps1 files
// from templatesDir. A file in templatesDir with a built-in name
// overrides the embedded body; unknown names become Custom templates.
func NewRegistry(templatesDir string) (*Registry, error) {
	r := &Registry{templates: make(map[string]*models.Template)}

	for _, info := range builtinCatalog {
		body, err := loadTemplateBody(templatesDir, info.Name)
		if err != nil {
			return nil, err
		}
		r.add(&models.Template{Info: info, Body: body})
	}

	if templatesDir != "" {
		if err := r.loadCustomTemplates(templatesDir); err != nil {
			return nil, err
		}
	}

	log.Info().Int("count", len(r.order)).Str("dir", templatesDir).Msg("Template registry initialized")
	return r, nil
}

// ListTemplates returns the catalog in load order. Never fails: an
// empty catalog is valid.
func (r *Registry) ListTemplates() []models.TemplateInfo {
	infos := make([]models.TemplateInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.templates[name].Info)
	}
	return infos
}

// GetTemplate returns the named template or NotFound.
func (r *Registry) GetTemplate(name string) (*models.Template, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return nil, apperror.NotFound("template", name)
	}
	return tmpl, nil
}

func (r *Registry) add(tmpl *models.Template) {
	r.templates[tmpl.Info.Name] = tmpl
	r.order = append(r.order, tmpl.Info.Name)
}

func (r *Registry) loadCustomTemplates(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperror.Wrap(apperror.KindInternal, err, "failed to read templates directory")
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".ps1") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".ps1")
		if _, exists := r.templates[name]; exists {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		body, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable custom template")
			continue
		}

		r.add(&models.Template{
			Info: models.TemplateInfo{
				Name:         name,
				Description:  "Custom template: " + name,
				Category:     "Custom",
				RequiredVars: []string{},
				Path:         path,
			},
			Body: string(body),
		})
	}

	return nil
}

// loadTemplateBody prefers a file override in templatesDir and falls
// back to the embedded copy.
func loadTemplateBody(templatesDir, name string) (string, error) {
	if templatesDir != "" {
		override := filepath.Join(templatesDir, name+".ps1")
		if body, err := os.ReadFile(override); err == nil {
			log.Debug().Str("template", name).Str("path", override).Msg("Using template override")
			return string(body), nil
		}
	}

	body, err := embeddedTemplates.ReadFile("templates/" + name + ".ps1")
	if err != nil {
		return "", apperror.Wrap(apperror.KindInternal, err, "missing embedded template "+name)
	}
	return string(body), nil
}

// agentTemplateBody returns the embedded agent callback template.
func agentTemplateBody() (string, error) {
	body, err := embeddedTemplates.ReadFile("templates/" + agentCallbackTemplate + ".ps1")
	if err != nil {
		return "", apperror.Wrap(apperror.KindInternal, err, "missing embedded agent callback template")
	}
	return string(body), nil
}
