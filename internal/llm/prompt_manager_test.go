package llm

import (
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPromptManager_LoadsEmbeddedPrompts(t *testing.T) {
	pm, err := NewPromptManager()
	require.NoError(t, err)

	out, err := pm.Render(FileReviewPrompt, "anthropic", map[string]any{
		"FilePath":           "a.py",
		"Diff":               "+print(1)",
		"Content":            "print(1)",
		"CustomInstructions": "",
		"Tools":              []map[string]string{{"Name": "read_file", "Description": "read a file"}},
		"Transcript":         "",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "File: a.py")
	assert.Contains(t, out, "- read_file: read a file")
	assert.NotContains(t, out, "Previous turns")

	out, err = pm.Render(SummaryPrompt, DefaultProvider, map[string]any{
		"Results":     `[{"file_path":"a.py"}]`,
		"Truncated":   true,
		"FailedFiles": []string{"b.py", "c.py"},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "b.py, c.py")
	assert.Contains(t, out, "omitted")
}

func TestPromptManager_ProviderOverride(t *testing.T) {
	pm := &PromptManager{prompts: map[PromptKey]map[ModelProvider]*template.Template{}}
	require.NoError(t, pm.Register("greet", DefaultProvider, "hello {{.Name}}"))
	require.NoError(t, pm.Register("greet", "ollama", "hi {{.Name}}"))

	out, err := pm.Render("greet", "ollama", map[string]string{"Name": "x"})
	require.NoError(t, err)
	assert.Equal(t, "hi x", out)

	out, err = pm.Render("greet", "gemini", map[string]string{"Name": "x"})
	require.NoError(t, err)
	assert.Equal(t, "hello x", out)

	_, err = pm.Render("missing", DefaultProvider, nil)
	assert.Error(t, err)
}

func TestSplitPromptName(t *testing.T) {
	key, provider, err := splitPromptName("file_review_default.prompt")
	require.NoError(t, err)
	assert.Equal(t, FileReviewPrompt, key)
	assert.Equal(t, DefaultProvider, provider)

	for _, bad := range []string{"review.prompt", "_default.prompt", "review_.prompt"} {
		_, _, err := splitPromptName(bad)
		assert.Error(t, err, bad)
	}
}
