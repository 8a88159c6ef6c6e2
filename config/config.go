package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/credentials"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LLMProvider string `envconfig:"LLM_PROVIDER" default:"azure"`

	AzureAPIKey     string  `envconfig:"AZURE_OPENAI_API_KEY"`
	AzureEndpoint   string  `envconfig:"AZURE_OPENAI_ENDPOINT"`
	AzureDeployment string  `envconfig:"AZURE_OPENAI_DEPLOYMENT"`
	AzureAPIVersion string  `envconfig:"AZURE_OPENAI_API_VERSION"`
	ModelName       string  `envconfig:"MODEL_NAME"`
	Temperature     float64 `envconfig:"MODEL_TEMPERATURE" default:"0"`
	temperatureSet  bool

	ModelConfigFile string `envconfig:"MODEL_CONFIG_FILE"`
	ModelVersion    string `envconfig:"MODEL_VERSION" default:"gpt-4o"`

	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	ClaudeModel     string `envconfig:"CLAUDE_MODEL" default:"claude-sonnet-4-20250514"`

	OllamaURL   string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	OllamaModel string `envconfig:"OLLAMA_MODEL" default:"qwen2.5:7b"`

	CalendarificAPIKey string `envconfig:"CALENDARIFIC_API_KEY"`
	CalendarificURL    string `envconfig:"CALENDARIFIC_URL" default:"https://calendarific.com/api/v2"`
	HolidayCountry     string `envconfig:"HOLIDAY_COUNTRY" default:"TW"`
	HolidayLanguage    string `envconfig:"HOLIDAY_LANGUAGE" default:"zh"`

	SessionID     string        `envconfig:"SESSION_ID" default:"hw03"`
	SessionMaxAge time.Duration `envconfig:"SESSION_MAX_AGE" default:"1h"`
	MaxTurns      int           `envconfig:"MAX_TURNS" default:"10"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	ServerPort     int    `envconfig:"SERVER_PORT" default:"8080"`
	APIKeyRequired bool   `envconfig:"API_KEY_REQUIRED" default:"false"`
	APIKeys        string `envconfig:"API_KEYS"`
}

type Provider string

const (
	ProviderAzure  Provider = "azure"
	ProviderClaude Provider = "claude"
	ProviderOllama Provider = "ollama"
	ProviderAuto   Provider = "auto"
)

const (
	defaultModelName  = "gpt-4o"
	defaultAPIVersion = "2024-08-01-preview"
)

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	_, cfg.temperatureSet = os.LookupEnv("MODEL_TEMPERATURE")

	// Precedence: environment, then the model file, then the keychain.
	if cfg.ModelConfigFile != "" {
		models, err := LoadModelConfigurations(cfg.ModelConfigFile)
		if err != nil {
			return nil, err
		}
		mc, err := models.Get(cfg.ModelVersion)
		if err != nil {
			return nil, err
		}
		cfg.applyModelConfiguration(mc)
	}

	cfg.AzureAPIKey = credentials.GetOrEnv(credentials.KeyAzureOpenAI, cfg.AzureAPIKey)
	cfg.AnthropicAPIKey = credentials.GetOrEnv(credentials.KeyAnthropic, cfg.AnthropicAPIKey)
	cfg.CalendarificAPIKey = credentials.GetOrEnv(credentials.KeyCalendarific, cfg.CalendarificAPIKey)

	if cfg.ModelName == "" {
		cfg.ModelName = defaultModelName
	}
	if cfg.AzureAPIVersion == "" {
		cfg.AzureAPIVersion = defaultAPIVersion
	}
	if cfg.AzureDeployment == "" {
		cfg.AzureDeployment = cfg.ModelName
	}

	switch cfg.Provider() {
	case ProviderAzure, ProviderClaude, ProviderOllama, ProviderAuto:
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (valid: azure, claude, ollama, auto)", cfg.LLMProvider)
	}

	return &cfg, nil
}

// applyModelConfiguration fills fields the environment left unset.
func (c *Config) applyModelConfiguration(mc ModelConfiguration) {
	if c.ModelName == "" {
		c.ModelName = mc.ModelName
	}
	if c.AzureDeployment == "" {
		c.AzureDeployment = mc.DeploymentName
	}
	if c.AzureAPIKey == "" {
		c.AzureAPIKey = mc.APIKey
	}
	if c.AzureAPIVersion == "" {
		c.AzureAPIVersion = mc.APIVersion
	}
	if c.AzureEndpoint == "" {
		c.AzureEndpoint = mc.APIBase
	}
	if !c.temperatureSet && mc.Temperature != nil {
		c.Temperature = *mc.Temperature
	}
}

func (c *Config) Provider() Provider {
	return Provider(strings.ToLower(strings.TrimSpace(c.LLMProvider)))
}

func (c *Config) HasAzure() bool {
	return c.AzureAPIKey != "" && c.AzureEndpoint != ""
}

func (c *Config) Validate() error {
	switch c.Provider() {
	case ProviderAzure:
		if !c.HasAzure() {
			return fmt.Errorf("Azure OpenAI requires AZURE_OPENAI_API_KEY and AZURE_OPENAI_ENDPOINT")
		}
	case ProviderClaude:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the claude provider")
		}
	case ProviderOllama:
		if c.OllamaURL == "" {
			return fmt.Errorf("OLLAMA_URL is required for the ollama provider")
		}
	}
	return nil
}

func (c *Config) RequireHolidayAPI() error {
	if c.CalendarificAPIKey == "" {
		return fmt.Errorf("CALENDARIFIC_API_KEY is required for holiday lookups")
	}
	return nil
}

func (c *Config) GetAPIKeys() map[string]bool {
	keys := make(map[string]bool)
	if c.APIKeys == "" {
		return keys
	}
	for _, key := range strings.Split(c.APIKeys, ",") {
		key = strings.TrimSpace(key)
		if key != "" {
			keys[key] = true
		}
	}
	return keys
}

func (c *Config) ValidateAPIKey(key string) bool {
	if !c.APIKeyRequired {
		return true
	}
	keys := c.GetAPIKeys()
	if len(keys) == 0 {
		return true
	}
	return keys[key]
}
