package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MegaGrindStone/reasoner-web-ui/internal/handlers"
	"github.com/MegaGrindStone/reasoner-web-ui/internal/services"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	llm(logger *slog.Logger) (handlers.LLM, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port         string    `yaml:"port"`
	LogLevel     string    `yaml:"logLevel"`
	SystemPrompt *string   `yaml:"systemPrompt"`
	LLM          llmConfig `yaml:"llm"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string                 `yaml:"apiKey"`
	BaseURL       string                 `yaml:"baseURL"`
	Parameters    services.LLMParameters `yaml:"parameters"`
}

type openRouterConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

type anthropicConfig struct {
	BaseLLMConfig  `yaml:",inline"`
	APIKey         string `yaml:"apiKey"`
	BaseURL        string `yaml:"baseURL"`
	MaxTokens      int    `yaml:"maxTokens"`
	ThinkingBudget int    `yaml:"thinkingBudget"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port         string         `yaml:"port"`
		LogLevel     string         `yaml:"logLevel"`
		SystemPrompt *string        `yaml:"systemPrompt"`
		LLM          map[string]any `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.LogLevel = rawConfig.LogLevel
	c.SystemPrompt = rawConfig.SystemPrompt

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "openai", "deepseek":
		llm = &openAIConfig{}
	case "openrouter":
		llm = &openRouterConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm

	return nil
}

func defaultConfig() config {
	return config{
		LLM: &openAIConfig{BaseLLMConfig: BaseLLMConfig{Provider: "deepseek"}},
	}
}

func decodeConfig(r io.Reader) (config, error) {
	cfg := config{}
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}

func (c config) port() string {
	if c.Port == "" {
		return "5000"
	}
	return c.Port
}

func (c config) systemPrompt() string {
	if c.SystemPrompt == nil {
		return handlers.DefaultSystemPrompt
	}
	return *c.SystemPrompt
}

func (c config) logLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (o openAIConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	model := o.Model
	if model == "" {
		model = services.DeepSeekReasonerModel
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required: set llm.apiKey, DEEPSEEK_API_KEY or OPENAI_API_KEY")
	}

	return services.NewOpenAI(apiKey, o.BaseURL, model, o.Parameters, logger), nil
}

func (o openRouterConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	return services.NewOpenRouter(apiKey, o.Model, o.BaseURL, logger), nil
}

func (a anthropicConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if a.MaxTokens == 0 {
		return nil, fmt.Errorf("maxTokens is required")
	}
	if a.ThinkingBudget > 0 && a.ThinkingBudget >= a.MaxTokens {
		return nil, fmt.Errorf("thinkingBudget must be less than maxTokens")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, a.Model, a.MaxTokens, a.ThinkingBudget, a.BaseURL, logger), nil
}

func (o ollamaConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	return services.NewOllama(host, o.Model, logger)
}
