package notify

import (
	"bytes"
	"errors"
	"text/template"
)

// DefaultTemplate is the text body posted for a run with point errors.
const DefaultTemplate = `[Gas billing {{.Period}}]
Run: {{.RunID}}
Created: {{.InvoicesCreated}}  Updated: {{.InvoicesUpdated}}  Skipped: {{.SkippedInactive}}
Errors: {{.ErrorCount}}
{{- range .Errors }}
- {{.CUPS}}: {{.Error}}
{{- end }}
{{- if gt .ErrorCount (len .Errors) }}
...and {{.Omitted}} more
{{- end }}`

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("billing-run").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to summary.
func (t *Template) Render(summary RunSummary) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("billing template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, summary); err != nil {
		return "", err
	}
	return buf.String(), nil
}
