package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"
)

// Answer defaults. Grounded answers want little sampling freedom; a short
// cap keeps a runaway completion from filling the terminal.
const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.1
)

type constructor func(ctx context.Context, cfg *Config) (model.BaseChatModel, error)

var constructors = map[Backend]constructor{
	BackendOllama:  newOllama,
	BackendOpenAI:  newOpenAI,
	BackendAzure:   newAzure,
	BackendBedrock: newBedrock,
	BackendGemini:  newGemini,
}

// NewFromEnv builds the chat model selected by MODEL_PROVIDER.
//
//	MODEL_PROVIDER   ollama | openai | azure | bedrock | gemini (default: ollama)
//	Ollama           OLLAMA_HOST (http://localhost:11434), OLLAMA_MODEL (llama3)
//	OpenAI           OPENAI_API_KEY, OPENAI_MODEL (gpt-4o)
//	Azure            AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	                 AZURE_OPENAI_API_VERSION (2024-02-01)
//	Bedrock          AWS_BEARER_TOKEN_BEDROCK, AWS_REGION (us-east-1), BEDROCK_MODEL_ID
//	Gemini           GOOGLE_API_KEY, GEMINI_MODEL (gemini-1.5-pro)
//	All backends     MODEL_MAX_TOKENS (1024), MODEL_TEMPERATURE (0.1)
func NewFromEnv(ctx context.Context) (model.BaseChatModel, error) {
	return New(ctx, ConfigFromEnv())
}

// ConfigFromEnv reads every backend section from the environment. It does
// not validate; New does.
func ConfigFromEnv() *Config {
	return &Config{
		Backend: Backend(envString("MODEL_PROVIDER", string(BackendOllama))),
		Ollama: ProviderOllama{
			Host:  envString("OLLAMA_HOST", "http://localhost:11434"),
			Model: envString("OLLAMA_MODEL", "llama3"),
		},
		OpenAI: ProviderOpenAI{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  envString("OPENAI_MODEL", "gpt-4o"),
		},
		AzureOpenAI: ProviderAzureOpenAI{
			APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
			Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
			Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
			APIVersion: envString("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		},
		Bedrock: ProviderBedrock{
			AWSRegion: envString("AWS_REGION", "us-east-1"),
			ModelID:   os.Getenv("BEDROCK_MODEL_ID"),
		},
		Gemini: ProviderGemini{
			APIKey: os.Getenv("GOOGLE_API_KEY"),
			Model:  envString("GEMINI_MODEL", "gemini-1.5-pro"),
		},
		Tuning: SharedTuning{
			MaxTokens:   envParsed("MODEL_MAX_TOKENS", DefaultMaxTokens, strconv.Atoi),
			Temperature: envParsed("MODEL_TEMPERATURE", float32(DefaultTemperature), parseFloat32),
		},
	}
}

// New validates cfg and builds the chat model for cfg.Backend. Validation
// runs first so a missing key fails at startup, not on the first question.
func New(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	build, ok := constructors[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("provider: unknown backend %q", cfg.Backend)
	}
	m, err := build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("provider: %s: %w", cfg.Backend, err)
	}
	return m, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envParsed returns parse(value of key), or fallback when the variable is
// unset or does not parse.
func envParsed[T any](key string, fallback T, parse func(string) (T, error)) T {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	out, err := parse(v)
	if err != nil {
		return fallback
	}
	return out
}

func parseFloat32(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	return float32(f), err
}
