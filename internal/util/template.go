package util

import (
	"fmt"
	"strings"
	"text/template"
)

// promptFuncs are the helpers available inside instruction templates.
var promptFuncs = template.FuncMap{
	"default": func(defaultVal any, val any) any {
		if val == nil || val == "" {
			return defaultVal
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	},
	"join": func(sep string, items []any) string {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = fmt.Sprintf("%v", item)
		}
		return strings.Join(parts, sep)
	},
}

// RenderTemplate expands {{.key}} placeholders in an instruction against the
// session state using text/template. Prompts go to a model, not a browser, so
// state values must pass through unescaped; html/template would mangle quotes
// and angle brackets.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text, nil
	}

	tmpl, err := template.New("prompt").Funcs(promptFuncs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse instruction template: %w", err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, state); err != nil {
		return "", fmt.Errorf("failed to render instruction template: %w", err)
	}

	return sb.String(), nil
}
