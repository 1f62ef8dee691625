package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/annkit/config"
)

// loadDocument reads a parameter document. s is either an inline JSON
// object or the path of a JSON or YAML file. An empty s is the empty
// document.
func loadDocument(s string) (config.Document, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return config.MustParseDocument(`{}`), nil
	}
	if strings.HasPrefix(s, "{") {
		return config.ParseDocument([]byte(s))
	}

	data, err := os.ReadFile(s)
	if err != nil {
		return config.Document{}, err
	}
	switch strings.ToLower(filepath.Ext(s)) {
	case ".json":
		return config.ParseDocument(data)
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		return config.Document{}, fmt.Errorf("unsupported params file %q: want .json, .yaml or .yml", s)
	}
}

func parseYAML(data []byte) (config.Document, error) {
	m := map[string]any{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return config.Document{}, fmt.Errorf("parse yaml: %w", err)
	}
	return config.NewDocument(m)
}
