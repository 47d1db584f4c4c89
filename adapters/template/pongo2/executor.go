package exportpongo2

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// Built in template names.
const (
	TemplateTable    = "table"
	TemplateDocument = "document"
	TemplatePage     = "page"
)

// ContextProvider lets data choose its own template variables.
type ContextProvider interface {
	TemplateContext() map[string]any
}

// Executor renders named pongo2 templates. It implements
// exporttemplate.TemplateExecutor.
type Executor struct {
	set       *pongo2.TemplateSet
	mu        sync.RWMutex
	templates map[string]*pongo2.Template
}

// NewExecutor creates an executor with the embedded templates registered.
func NewExecutor() (*Executor, error) {
	e := &Executor{
		set:       pongo2.NewSet("tableview", pongo2.DefaultLoader),
		templates: make(map[string]*pongo2.Template),
	}
	entries, err := fs.ReadDir(embeddedTemplates, "templates")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		source, err := fs.ReadFile(embeddedTemplates, path.Join("templates", entry.Name()))
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		if err := e.Register(name, string(source)); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// MustNewExecutor is NewExecutor that panics on error.
func MustNewExecutor() *Executor {
	e, err := NewExecutor()
	if err != nil {
		panic(err)
	}
	return e
}

// Register compiles source under name, replacing any template of that name.
func (e *Executor) Register(name, source string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("pongo2 executor: template name is required")
	}
	tpl, err := e.set.FromString(source)
	if err != nil {
		return fmt.Errorf("pongo2 executor: compile %q: %w", name, err)
	}
	e.mu.Lock()
	e.templates[name] = tpl
	e.mu.Unlock()
	return nil
}

// Has reports whether name is registered.
func (e *Executor) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.templates[name]
	return ok
}

// ExecuteTemplate renders a named template into w.
func (e *Executor) ExecuteTemplate(w io.Writer, name string, data any) error {
	e.mu.RLock()
	tpl, ok := e.templates[name]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("pongo2 executor: template %q not found", name)
	}
	return tpl.ExecuteWriter(contextFor(data), w)
}

func contextFor(data any) pongo2.Context {
	switch v := data.(type) {
	case nil:
		return pongo2.Context{}
	case pongo2.Context:
		return v
	case map[string]any:
		return pongo2.Context(v)
	case ContextProvider:
		return pongo2.Context(v.TemplateContext())
	default:
		return pongo2.Context{"data": v}
	}
}
