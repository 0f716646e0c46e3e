package schema

import (
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML form of a domain definition.
type File struct {
	Name          string                  `yaml:"name"`
	Types         map[string]string       `yaml:"types"`      // child -> parent
	Predicates    map[string][]string     `yaml:"predicates"` // name -> argument types
	Actions       map[string]ActionConfig `yaml:"actions"`
	Complementary [][]string              `yaml:"complementary"`
	Module        []ModuleVariableConfig  `yaml:"module"`
	Background    []string                `yaml:"background"`
	Engine        EngineConfig            `yaml:"engine"`
}

// ActionConfig describes one action and its condition vocabulary.
type ActionConfig struct {
	Template   string   `yaml:"template"` // e.g. "(moveFloor ?X)"
	Types      []string `yaml:"types"`
	Conditions []string `yaml:"conditions"`
}

// ModuleVariableConfig declares a goal-scoped variable.
type ModuleVariableConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// EngineConfig holds tuning knobs for rule creation.
type EngineConfig struct {
	CacheSize     int `yaml:"cache_size"`
	Parallelism   int `yaml:"parallelism"`
	MaxIterations int `yaml:"max_iterations"`
}

// LoadFile loads a domain definition from a YAML file
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFile(data)
}

// ParseFile decodes a domain definition from YAML bytes
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
