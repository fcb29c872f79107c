package lens

import (
	_ "embed"
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lens-cli/internal/model"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Extraction kinds. Each kind maps to one LLM function and one normalizer.
const (
	KindSalesBANT         = "sales-bant"
	KindCustomerDiscovery = "customer-discovery"
	KindProductInsights   = "product-insights"
	KindQA                = "qa"
	KindConversation      = "conversation"
)

// FieldDef is one field of a template section.
type FieldDef struct {
	Key         string `yaml:"key" json:"field_key"`
	Name        string `yaml:"name" json:"field_name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// SectionDef is one section of a template.
type SectionDef struct {
	Key    string     `yaml:"key" json:"section_key"`
	Name   string     `yaml:"name" json:"section_name"`
	Fields []FieldDef `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Template is a lens template definition.
type Template struct {
	Key         string       `yaml:"key" json:"template_key"`
	Name        string       `yaml:"name" json:"template_name"`
	Category    string       `yaml:"category" json:"category,omitempty"`
	Description string       `yaml:"description" json:"description,omitempty"`
	Kind        string       `yaml:"kind,omitempty" json:"-"`
	IsActive    *bool        `yaml:"is_active,omitempty" json:"-"`
	Sections    []SectionDef `yaml:"sections" json:"sections"`
	EntityTypes []string     `yaml:"entity_types" json:"entity_types"`
}

// Active reports whether the template may be applied. Templates are active
// unless is_active is explicitly false.
func (t Template) Active() bool {
	return t.IsActive == nil || *t.IsActive
}

// ExtractionKind returns the LLM function family for the template. Built-in
// keys use their bespoke function; everything else is definition driven.
func (t Template) ExtractionKind() string {
	if t.Kind != "" {
		return t.Kind
	}
	switch t.Key {
	case KindSalesBANT, KindCustomerDiscovery, KindProductInsights, KindQA:
		return t.Key
	default:
		return KindConversation
	}
}

// DisplayName returns the template name, or a title-cased key.
func (t Template) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return cases.Title(language.English).String(strings.ReplaceAll(t.Key, "-", " "))
}

// CategoryLabel returns the title-cased category, "General" when unset.
func (t Template) CategoryLabel() string {
	if t.Category == "" {
		return "General"
	}
	return cases.Title(language.English).String(t.Category)
}

// DefinitionJSON renders the template definition sent to the LLM.
func (t Template) DefinitionJSON() string {
	b, err := json.Marshal(t)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Catalog is the set of known lens templates.
type Catalog struct {
	templates map[string]Template
}

// LoadCatalog reads the built-in templates and overlays the file at path,
// if any. Overlay entries replace built-ins with the same key.
func LoadCatalog(path string) (*Catalog, error) {
	c := &Catalog{templates: make(map[string]Template)}
	if err := c.merge(defaultTemplates); err != nil {
		return nil, eris.Wrap(err, "lens: parse built-in templates")
	}
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "lens: read templates %s", path)
	}
	if err := c.merge(data); err != nil {
		return nil, eris.Wrapf(err, "lens: parse templates %s", path)
	}
	return c, nil
}

// NewCatalog builds a catalog from templates.
func NewCatalog(templates ...Template) *Catalog {
	c := &Catalog{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		c.templates[t.Key] = t
	}
	return c
}

func (c *Catalog) merge(data []byte) error {
	var wrapper struct {
		Templates []Template `yaml:"lens_templates"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	for _, t := range wrapper.Templates {
		if t.Key == "" {
			return eris.New("template without key")
		}
		c.templates[t.Key] = t
	}
	return nil
}

// Get returns the template for key or an input error.
func (c *Catalog) Get(key string) (Template, error) {
	t, ok := c.templates[key]
	if !ok {
		return Template{}, model.NewInputError("template_key", "unknown lens template %q", key)
	}
	return t, nil
}

// Keys returns every template key in sorted order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.templates))
	for k := range c.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Name returns the display name for key, falling back to the key itself.
func (c *Catalog) Name(key string) string {
	if t, ok := c.templates[key]; ok {
		return t.DisplayName()
	}
	return key
}
