package core

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

type Prompts struct {
	ChecklistSystemInstruction string `yaml:"checklist_system_instruction"`
	WelcomeMessage             string `yaml:"welcome_message"`
	NewChatTitle               string `yaml:"new_chat_title"`
}

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() Prompts {
	var p Prompts
	if err := yaml.Unmarshal(defaultPromptsYAML, &p); err != nil {
		panic(fmt.Sprintf("embedded prompts.yaml is invalid: %v", err))
	}
	return p
}

// LoadPrompts reads a YAML prompts file over the defaults. An empty path
// returns the defaults.
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("read prompts: %w", err)
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Prompts{}, fmt.Errorf("unmarshal prompts: %w", err)
	}
	if strings.TrimSpace(p.ChecklistSystemInstruction) == "" ||
		strings.TrimSpace(p.WelcomeMessage) == "" ||
		strings.TrimSpace(p.NewChatTitle) == "" {
		return Prompts{}, fmt.Errorf("prompts missing")
	}
	return p, nil
}
