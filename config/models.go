package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelConfiguration is one named entry of the model configuration file.
type ModelConfiguration struct {
	ModelName      string   `yaml:"model_name"`
	DeploymentName string   `yaml:"deployment_name"`
	APIKey         string   `yaml:"api_key"`
	APIVersion     string   `yaml:"api_version"`
	APIBase        string   `yaml:"api_base"`
	Temperature    *float64 `yaml:"temperature"`
}

// ModelConfigurations maps a model version (e.g. "gpt-4o") to its configuration.
type ModelConfigurations map[string]ModelConfiguration

func LoadModelConfigurations(path string) (ModelConfigurations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model config %s: %w", path, err)
	}
	return ParseModelConfigurations(data)
}

func ParseModelConfigurations(data []byte) (ModelConfigurations, error) {
	var models ModelConfigurations
	if err := yaml.Unmarshal(data, &models); err != nil {
		return nil, fmt.Errorf("failed to parse model config: %w", err)
	}
	if models == nil {
		models = ModelConfigurations{}
	}
	return models, nil
}

func (m ModelConfigurations) Get(version string) (ModelConfiguration, error) {
	mc, ok := m[version]
	if !ok {
		return ModelConfiguration{}, fmt.Errorf("unknown model version: %s (valid: %s)", version, strings.Join(m.Versions(), ", "))
	}
	if mc.ModelName == "" {
		mc.ModelName = version
	}
	return mc, nil
}

func (m ModelConfigurations) Versions() []string {
	versions := make([]string, 0, len(m))
	for v := range m {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}
