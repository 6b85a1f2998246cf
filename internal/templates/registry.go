// Package templates manages the per-institution transform templates: a
// YAML-backed registry plus the sample-data self-test a template must pass
// before it is considered usable.
package templates

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"ledgerpipe/internal/importerror"
	"ledgerpipe/internal/logging"
	"ledgerpipe/internal/models"
	"ledgerpipe/internal/transform"
)

// Registry holds the loaded transform templates, keyed by id.
type Registry struct {
	templates map[string]models.TransformTemplate
	log       logging.Logger
}

// registryFile is the on-disk YAML shape.
type registryFile struct {
	Templates []models.TransformTemplate `yaml:"templates"`
}

// Load reads a template registry from a YAML file.
func Load(path string, log logging.Logger) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template registry %s: %w", path, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse template registry %s: %w", path, err)
	}

	reg := &Registry{templates: make(map[string]models.TransformTemplate, len(file.Templates)), log: log}
	for _, tmpl := range file.Templates {
		if err := Check(tmpl); err != nil {
			return nil, err
		}
		if _, dup := reg.templates[tmpl.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %s in %s", tmpl.ID, path)
		}
		reg.templates[tmpl.ID] = tmpl
	}

	log.Info("template registry loaded", logging.F("templates", len(reg.templates)), logging.F("path", path))
	return reg, nil
}

// Get returns a template by id.
func (r *Registry) Get(id string) (models.TransformTemplate, error) {
	tmpl, ok := r.templates[id]
	if !ok {
		return models.TransformTemplate{}, fmt.Errorf("template %s not found", id)
	}
	return tmpl, nil
}

// ForBankAccount returns the template registered for a bank-account
// template id and account type.
func (r *Registry) ForBankAccount(bankAccountTemplateID string, accountType models.AccountType) (models.TransformTemplate, error) {
	for _, tmpl := range r.templates {
		if tmpl.BankAccountTemplateID == bankAccountTemplateID && tmpl.Type == accountType {
			return tmpl, nil
		}
	}
	return models.TransformTemplate{}, fmt.Errorf("no template for bank account %s (%s)", bankAccountTemplateID, accountType)
}

// List returns all templates ordered by id.
func (r *Registry) List() []models.TransformTemplate {
	out := make([]models.TransformTemplate, 0, len(r.templates))
	for _, tmpl := range r.templates {
		out = append(out, tmpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Check statically validates a template: the query must reference the
// {{data}} placeholder, identity columns must be declared (they define the
// dedup key), and the format must be known.
func Check(tmpl models.TransformTemplate) error {
	if tmpl.ID == "" {
		return &importerror.TemplateError{TemplateID: "(unset)", Reason: "missing id"}
	}
	if !transform.HasPlaceholder(tmpl.TransformQuery) {
		return &importerror.TemplateError{TemplateID: tmpl.ID, Reason: "transform query does not reference {{data}}"}
	}
	if len(tmpl.Parsing.IdentityColumns) == 0 {
		return &importerror.TemplateError{TemplateID: tmpl.ID, Reason: "no identity columns configured"}
	}
	switch tmpl.Parsing.Format {
	case models.FormatCSV, models.FormatExcel:
	default:
		return &importerror.TemplateError{TemplateID: tmpl.ID, Reason: fmt.Sprintf("unknown format %q", tmpl.Parsing.Format)}
	}
	return nil
}
