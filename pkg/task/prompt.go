package task

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// ParsePrompt compiles a prompt template with the sprig function map.
func ParsePrompt(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", name, err)
	}
	return tmpl, nil
}

// RenderPrompt renders the task's prompt from its resolved inputs only.
// Declared inputs that were not resolved render as empty strings.
func RenderPrompt(spec *Spec, inputs map[string]any) (string, error) {
	tmpl, err := ParsePrompt(spec.ID, spec.Prompt)
	if err != nil {
		return "", err
	}
	data := make(map[string]any, len(spec.Inputs))
	for _, p := range spec.Inputs {
		data[p.Name] = ""
	}
	for k, v := range inputs {
		data[k] = v
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", spec.ID, err)
	}
	return buf.String(), nil
}
