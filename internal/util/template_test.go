package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate_SubstitutesStateValues(t *testing.T) {
	out, err := RenderTemplate("You live in {{.city}}.", map[string]any{"city": "Berlin"})
	require.NoError(t, err)
	assert.Equal(t, "You live in Berlin.", out)
}

func TestRenderTemplate_NoMarkersFastPath(t *testing.T) {
	out, err := RenderTemplate("plain instruction", map[string]any{"city": "Berlin"})
	require.NoError(t, err)
	assert.Equal(t, "plain instruction", out)
}

func TestRenderTemplate_DoesNotEscapePromptText(t *testing.T) {
	state := map[string]any{"blog_post": `Gardening "tips" & tricks <fast>`}

	out, err := RenderTemplate("Summarize: {{.blog_post}}", state)
	require.NoError(t, err)
	assert.Equal(t, `Summarize: Gardening "tips" & tricks <fast>`, out)
}

func TestRenderTemplate_Helpers(t *testing.T) {
	state := map[string]any{"name": "", "tags": []any{"a", "b"}}

	out, err := RenderTemplate(`{{default "guest" .name}}: {{join ", " .tags}}`, state)
	require.NoError(t, err)
	assert.Equal(t, "guest: a, b", out)
}

func TestRenderTemplate_InvalidTemplate(t *testing.T) {
	_, err := RenderTemplate("{{.city", map[string]any{})
	require.Error(t, err)
}
