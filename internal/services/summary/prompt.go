package summary

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/killallgit/testimony-api/internal/services/prompts"
)

// PromptConfig is a versioned summary prompt plus its sampling settings
type PromptConfig struct {
	Name        string  `yaml:"name"`
	Version     string  `yaml:"version"`
	Template    string  `yaml:"template"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

const defaultTemplate = `Eres un asistente pastoral que resume testimonios cristianos transcritos de audio.

Escribe un resumen de 100 a 150 palabras, en tercera persona ("el hermano", "la hermana"), que incluya:
1. La promesa o profecía que la persona recibió.
2. El proceso que vivió y cómo se resolvió.
3. La enseñanza edificante para la iglesia.

No inventes detalles que no estén en la transcripción. No uses encabezados, viñetas ni negritas.

Al final, en una línea aparte que empiece con "Etiquetas:", escribe entre 3 y 7 etiquetas doctrinales en minúsculas, sin tildes, con las palabras unidas por guion bajo y separadas por comas. Ejemplo:
Etiquetas: sanidad, promesa_cumplida, fe`

// DefaultPrompt is the prompt used when no prompt file is configured
func DefaultPrompt() PromptConfig {
	return PromptConfig{
		Name:        "summary",
		Version:     "v3",
		Template:    defaultTemplate,
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
		MaxTokens:   400,
	}
}

// LoadPromptFile reads a YAML prompt file. Missing fields fall back to
// DefaultPrompt, except the template which is required.
func LoadPromptFile(path string) (PromptConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PromptConfig{}, fmt.Errorf("reading prompt file: %w", err)
	}

	var p PromptConfig
	if err := yaml.Unmarshal(data, &p); err != nil {
		return PromptConfig{}, fmt.Errorf("parsing prompt file %s: %w", path, err)
	}
	if strings.TrimSpace(p.Template) == "" {
		return PromptConfig{}, fmt.Errorf("prompt file %s has no template", path)
	}

	def := DefaultPrompt()
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.Version == "" {
		p.Version = def.Version
	}
	if p.Model == "" {
		p.Model = def.Model
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = def.MaxTokens
	}
	p.Template = strings.TrimSpace(p.Template)
	return p, nil
}

// Spec converts the config to a registry entry
func (p PromptConfig) Spec() prompts.Spec {
	return prompts.Spec{
		Name:        p.Name,
		Version:     p.Version,
		Template:    p.Template,
		Model:       p.Model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
}

// Messages builds the chat for one transcript
func (p PromptConfig) Messages(transcript string) []Message {
	return []Message{
		{Role: RoleSystem, Content: p.Template},
		{Role: RoleUser, Content: "Transcripción del testimonio:\n\n" + transcript},
	}
}

// Params returns the sampling settings
func (p PromptConfig) Params() Params {
	return Params{Model: p.Model, Temperature: p.Temperature, MaxTokens: p.MaxTokens}
}
