package notify

import (
	"bytes"
	"embed"
	"html/template"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
)

//go:embed templates/*.html
var templatesFS embed.FS

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Renderer renders the embedded email templates. Parsed templates are cached
// by name after first use.
type Renderer struct {
	mu    sync.RWMutex
	cache map[string]*template.Template
	now   func() time.Time
}

// NewRenderer returns a Renderer with an empty cache.
func NewRenderer() *Renderer {
	return &Renderer{
		cache: make(map[string]*template.Template),
		now:   time.Now,
	}
}

// Render executes the named template. CurrentYear is added to data.
func (r *Renderer) Render(name string, data map[string]any) (string, error) {
	tmpl, err := r.template(name)
	if err != nil {
		return "", err
	}

	merged := make(map[string]any, len(data)+1)
	for k, v := range data {
		merged[k] = v
	}
	merged["CurrentYear"] = r.now().Year()

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, merged); err != nil {
		return "", oops.In("notify").With("template", name).Wrapf(err, "render template")
	}
	return buf.String(), nil
}

// ClearCache drops every parsed template.
func (r *Renderer) ClearCache() {
	r.mu.Lock()
	r.cache = make(map[string]*template.Template)
	r.mu.Unlock()
}

func (r *Renderer) cached() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Renderer) template(name string) (*template.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/"+name+".html")
	if err != nil {
		return nil, oops.In("notify").With("template", name).Wrapf(err, "load template")
	}

	r.mu.Lock()
	r.cache[name] = tmpl
	r.mu.Unlock()
	return tmpl, nil
}

// StripHTML derives a plain-text alternative from an HTML body.
func StripHTML(html string) string {
	text := tagPattern.ReplaceAllString(html, "")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}
