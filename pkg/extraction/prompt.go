package extraction

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/tyler-sommer/stick"
)

//go:embed prompts/*.twig
var promptFS embed.FS

// PromptProvider renders the system and per-target prompt templates.
// Templates are twig files rendered with stick; the built-in set can be
// overridden wholesale via WithPromptTemplates.
type PromptProvider struct {
	env       *stick.Env
	templates map[string]string
}

const (
	systemTemplate = "system"
	tableTemplate  = "table"
	stringTemplate = "string"
)

// NewPromptProvider builds a provider from the embedded templates,
// overlaid with any caller-supplied overrides.
func NewPromptProvider(overrides map[string]string) (*PromptProvider, error) {
	p := &PromptProvider{
		env:       stick.New(nil),
		templates: make(map[string]string),
	}

	err := fs.WalkDir(promptFS, "prompts", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".twig") {
			return nil
		}
		content, readErr := fs.ReadFile(promptFS, path)
		if readErr != nil {
			return fmt.Errorf("read %s: %w", path, readErr)
		}
		tag := strings.TrimSuffix(filepath.Base(path), ".twig")
		p.templates[tag] = string(content)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for tag, tpl := range overrides {
		p.templates[tag] = tpl
	}

	for _, tag := range []string{systemTemplate, tableTemplate, stringTemplate} {
		if _, ok := p.templates[tag]; !ok {
			return nil, fmt.Errorf("prompt template %q missing", tag)
		}
	}
	return p, nil
}

// SystemPrompt renders the fixed system instruction block.
func (p *PromptProvider) SystemPrompt() (string, error) {
	return p.render(systemTemplate, nil)
}

// TargetPrompt renders the instruction block for one target. The target
// union is closed; an unknown variant is a fatal per-target error.
func (p *PromptProvider) TargetPrompt(target Target) (string, error) {
	switch t := target.(type) {
	case TableTarget:
		return p.render(tableTemplate, map[string]stick.Value{
			"name":         t.Name,
			"columns":      strings.Join(t.Columns, ", "),
			"example":      formatExampleRows(t.ExampleRows),
			"instructions": t.Instructions,
		})
	case StringTarget:
		return p.render(stringTemplate, map[string]stick.Value{
			"name":         t.Name,
			"example":      t.Example,
			"instructions": t.Instructions,
		})
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedTarget, target)
	}
}

func (p *PromptProvider) render(tag string, ctx map[string]stick.Value) (string, error) {
	tpl, ok := p.templates[tag]
	if !ok {
		return "", fmt.Errorf("prompt template %q not found", tag)
	}
	var out strings.Builder
	if err := p.env.Execute(tpl, &out, ctx); err != nil {
		return "", fmt.Errorf("render %q: %w", tag, err)
	}
	return out.String(), nil
}

// formatExampleRows renders up to three example rows, matching the shape
// the table prompt promises.
func formatExampleRows(rows []map[string]any) string {
	if len(rows) > 3 {
		rows = rows[:3]
	}
	if len(rows) == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.WriteString("[")
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%v", row))
	}
	sb.WriteString("]")
	return sb.String()
}
