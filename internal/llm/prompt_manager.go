package llm

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed prompts/*.prompt
var promptFiles embed.FS

// ModelProvider selects a provider-specific prompt variant.
type ModelProvider string

// PromptKey names a prompt family.
type PromptKey string

const (
	DefaultProvider ModelProvider = "default"

	// FileReviewPrompt drives the per-file reviewer agent.
	FileReviewPrompt PromptKey = "file_review"
	// SummaryPrompt drives the aggregation of structured results.
	SummaryPrompt PromptKey = "summary"
)

var promptFuncs = template.FuncMap{
	"join": strings.Join,
}

// PromptManager holds the embedded prompt templates. Files are named
// <key>_<provider>.prompt; the provider segment is the text after the last
// underscore, so keys may themselves contain underscores.
type PromptManager struct {
	prompts map[PromptKey]map[ModelProvider]*template.Template
}

func NewPromptManager() (*PromptManager, error) {
	pm := &PromptManager{
		prompts: make(map[PromptKey]map[ModelProvider]*template.Template),
	}

	files, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded prompts directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		key, provider, err := splitPromptName(file.Name())
		if err != nil {
			return nil, err
		}
		content, err := promptFiles.ReadFile("prompts/" + file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded prompt file %s: %w", file.Name(), err)
		}
		if err := pm.Register(key, provider, string(content)); err != nil {
			return nil, fmt.Errorf("failed to register prompt from file %s: %w", file.Name(), err)
		}
	}

	return pm, nil
}

func splitPromptName(fileName string) (PromptKey, ModelProvider, error) {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	i := strings.LastIndex(base, "_")
	if i <= 0 || i == len(base)-1 {
		return "", "", fmt.Errorf("invalid prompt filename %s: expected <key>_<provider>.prompt", fileName)
	}
	return PromptKey(base[:i]), ModelProvider(base[i+1:]), nil
}

// Register parses content and stores it under key and provider.
func (pm *PromptManager) Register(key PromptKey, provider ModelProvider, content string) error {
	tmpl, err := template.New(string(key) + "_" + string(provider)).
		Option("missingkey=error").
		Funcs(promptFuncs).
		Parse(content)
	if err != nil {
		return fmt.Errorf("could not parse template: %w", err)
	}
	if _, ok := pm.prompts[key]; !ok {
		pm.prompts[key] = make(map[ModelProvider]*template.Template)
	}
	pm.prompts[key][provider] = tmpl
	return nil
}

// Render executes the template for key, preferring the provider variant and
// falling back to the default one.
func (pm *PromptManager) Render(key PromptKey, provider ModelProvider, data any) (string, error) {
	variants, ok := pm.prompts[key]
	if !ok {
		return "", fmt.Errorf("no prompts found for key '%s'", key)
	}
	tmpl, ok := variants[provider]
	if !ok {
		if tmpl, ok = variants[DefaultProvider]; !ok {
			return "", fmt.Errorf("no template for key '%s' and provider '%s', and no default", key, provider)
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
