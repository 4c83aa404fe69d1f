package credentials

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed translations/nl.yml
var defaultTranslations []byte

// RenderType selects the output shape for a credential listing.
type RenderType int

const (
	// RenderJSON emits the credentials as a JSON array.
	RenderJSON RenderType = iota
	// RenderHTML emits the credential sections without page chrome,
	// for embedding in an existing page.
	RenderHTML
	// RenderHTMLPage emits a complete standalone page.
	RenderHTMLPage
)

// Translations maps attribute keys to display labels. Missing keys
// fall back to the raw attribute name.
type Translations map[string]string

// Label returns the display label for an attribute key.
func (t Translations) Label(key string) string {
	if label, ok := t[key]; ok {
		return label
	}
	return key
}

// LoadTranslations reads nl.yml from the working directory when
// present so deployments can override labels, falling back to the
// embedded copy.
func LoadTranslations() (Translations, error) {
	data, err := os.ReadFile("nl.yml")
	if err != nil {
		data = defaultTranslations
	}
	var tr Translations
	if err := yaml.Unmarshal(data, &tr); err != nil {
		return nil, err
	}
	return tr, nil
}

// Rendered is a rendered credential listing plus its content type.
type Rendered struct {
	Content     []byte
	ContentType string
}

// Renderer renders credential listings. It is safe for concurrent use
// once constructed.
type Renderer struct {
	templates    *template.Template
	translations Translations
}

// NewRenderer parses the credential templates, preferring copies under
// ./templates over the embedded defaults so deployments can restyle
// the page.
func NewRenderer(translations Translations) (*Renderer, error) {
	funcs := template.FuncMap{"translate": translations.Label}
	tmpl := template.New("credentials").Funcs(funcs)

	for _, name := range []string{"base.html", "credentials.html"} {
		data, err := os.ReadFile(filepath.Join("templates", name))
		if err != nil {
			data, err = templateFS.ReadFile("templates/" + name)
			if err != nil {
				return nil, err
			}
		}
		if _, err := tmpl.New(name).Parse(string(data)); err != nil {
			return nil, err
		}
	}

	return &Renderer{templates: tmpl, translations: translations}, nil
}

// Render produces the listing in the requested shape.
func (r *Renderer) Render(creds []Credentials, kind RenderType) (*Rendered, error) {
	if kind == RenderJSON {
		content, err := json.Marshal(creds)
		if err != nil {
			return nil, err
		}
		return &Rendered{Content: content, ContentType: "application/json"}, nil
	}

	sorted := make([]Sorted, 0, len(creds))
	for _, c := range creds {
		sorted = append(sorted, c.Sorted())
	}

	name := "credentials.html"
	if kind == RenderHTMLPage {
		name = "base.html"
	}
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, sorted); err != nil {
		return nil, err
	}
	return &Rendered{Content: buf.Bytes(), ContentType: "text/html; charset=utf-8"}, nil
}
