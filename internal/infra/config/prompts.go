package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"devagents/internal/domain"
)

// LoadPrompts reads a YAML prompt file and flattens it into a PromptSet
// with dot-path keys. Nested maps become path segments; leaf values must
// be strings.
//
//	agents:
//	  chatbot:
//	    system: "You are..."
//
// yields the key "agents.chatbot.system".
func LoadPrompts(path string) (domain.PromptSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.PromptSet{}, fmt.Errorf("read prompts: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return domain.PromptSet{}, fmt.Errorf("parse prompts: %w", err)
	}

	flat := make(map[string]string)
	if err := flattenPrompts("", raw, flat); err != nil {
		return domain.PromptSet{}, err
	}
	return domain.NewPromptSet(flat), nil
}

func flattenPrompts(prefix string, node map[string]any, out map[string]string) error {
	for key, value := range node {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch v := value.(type) {
		case string:
			out[path] = v
		case map[string]any:
			if err := flattenPrompts(path, v, out); err != nil {
				return err
			}
		case nil:
			// empty node, skip
		default:
			return fmt.Errorf("prompt %q: expected string or mapping, got %T", path, value)
		}
	}
	return nil
}
