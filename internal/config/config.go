// Package config loads kbai's optional YAML file and exports its values as
// env vars, which is where every other package reads settings from. A value
// already present in the environment (shell export or .env) is kept.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. KBAI_CONFIG environment variable
//  3. ~/.kbai/config.yaml
//  4. ./kbai.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the YAML document. Each leaf maps to one env var in envMapping.
type Config struct {
	// Model configures the LLM chat model provider.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Store selects and locates the vector store.
	Store StoreConfig `yaml:"store"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Ingest configures which files are chunked and how.
	Ingest IngestConfig `yaml:"ingest"`

	// Retrieval configures how many chunks feed each answer.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Answer configures answer language and terminal rendering.
	Answer AnswerConfig `yaml:"answer"`

	// GitHub configures the GitHub tools.
	GitHub GitHubConfig `yaml:"github"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelConfig holds LLM chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, bedrock, gemini.
	Provider string `yaml:"provider"`

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`

	Ollama  OllamaConfig  `yaml:"ollama"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Azure   AzureConfig   `yaml:"azure"`
	Bedrock BedrockConfig `yaml:"bedrock"`
	Gemini  GeminiConfig  `yaml:"gemini"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

// BedrockConfig holds AWS Bedrock provider settings.
type BedrockConfig struct {
	Region  string `yaml:"region"`
	ModelID string `yaml:"model_id"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure, gemini).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	// Backend is sqlite (default) or qdrant.
	Backend string `yaml:"backend"`
	// Path is the SQLite database file. Defaults to ~/.kbai/knowledge.db.
	Path string `yaml:"path"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// IngestConfig holds the document and source directories and the chunk window.
type IngestConfig struct {
	PDFDir  string `yaml:"pdf_dir"`
	CodeDir string `yaml:"code_dir"`
	// CodeExtensions is a comma-separated list such as ".py,.c,.h".
	CodeExtensions string `yaml:"code_extensions"`
	ChunkSize      int    `yaml:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
}

// RetrievalConfig holds retrieval settings.
type RetrievalConfig struct {
	// TopK is the number of chunks retrieved per question.
	TopK int `yaml:"top_k"`
	// MaxContextTokens bounds the context handed to the model.
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// AnswerConfig holds answer settings.
type AnswerConfig struct {
	// Language is the language answers are written in.
	Language string `yaml:"language"`
	// WrapWidth is the terminal column at which answers wrap.
	WrapWidth int `yaml:"wrap_width"`
}

// GitHubConfig holds GitHub tool settings.
type GitHubConfig struct {
	// Token is the GitHub access token. Prefer env var GITHUB_TOKEN.
	Token string `yaml:"token"`
	// DefaultUser is used by list_user_repos when no username is given.
	DefaultUser string `yaml:"default_user"`
	// BaseURL points at a GitHub Enterprise API.
	BaseURL string `yaml:"base_url"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var KBAI_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
	// File receives the logs instead of stderr, keeping the chat screen clean.
	File string `yaml:"file"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping lists the env var fed by each field.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"AWS_REGION", func(c *Config) string { return c.Model.Bedrock.Region }},
	{"BEDROCK_MODEL_ID", func(c *Config) string { return c.Model.Bedrock.ModelID }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"STORE_BACKEND", func(c *Config) string { return c.Store.Backend }},
	{"KBAI_STORE_PATH", func(c *Config) string { return c.Store.Path }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"KBAI_PDF_DIR", func(c *Config) string { return c.Ingest.PDFDir }},
	{"KBAI_CODE_DIR", func(c *Config) string { return c.Ingest.CodeDir }},
	{"KBAI_CODE_EXTENSIONS", func(c *Config) string { return c.Ingest.CodeExtensions }},
	{"KBAI_CHUNK_SIZE", func(c *Config) string { return intStr(c.Ingest.ChunkSize) }},
	{"KBAI_CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Ingest.ChunkOverlap) }},
	{"KBAI_TOP_K", func(c *Config) string { return intStr(c.Retrieval.TopK) }},
	{"KBAI_MAX_CONTEXT_TOKENS", func(c *Config) string { return intStr(c.Retrieval.MaxContextTokens) }},
	{"KBAI_ANSWER_LANGUAGE", func(c *Config) string { return c.Answer.Language }},
	{"KBAI_WRAP_WIDTH", func(c *Config) string { return intStr(c.Answer.WrapWidth) }},
	{"GITHUB_TOKEN", func(c *Config) string { return c.GitHub.Token }},
	{"GITHUB_DEFAULT_USER", func(c *Config) string { return c.GitHub.DefaultUser }},
	{"GITHUB_BASE_URL", func(c *Config) string { return c.GitHub.BaseURL }},
	{"KBAI_HOST", func(c *Config) string { return c.Server.Host }},
	{"KBAI_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"KBAI_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"LOG_FILE", func(c *Config) string { return c.Logging.File }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load finds the config file, parses it and exports every set value whose
// env var is still empty. It returns the path used, or "" when no file was
// found, in which case kbai runs from env vars alone.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no file found, env vars only")
		return "", nil
	}

	cfg, err := parseFile(path)
	if err != nil {
		return "", err
	}
	applied := applyEnv(cfg)

	log.Info("config: file loaded",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)
	return path, nil
}

// parseFile decodes the YAML document at path. Unknown keys are rejected so
// a typo in a section name does not silently fall back to defaults.
func parseFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// applyEnv sets the env var of every non-zero field of cfg unless the
// variable already holds a value. It returns how many were set.
func applyEnv(cfg *Config) int {
	n := 0
	for _, m := range envMapping {
		v := m.value(cfg)
		if v == "" || os.Getenv(m.envKey) != "" {
			continue
		}
		if err := os.Setenv(m.envKey, v); err == nil {
			n++
		}
	}
	return n
}

// resolveConfigPath returns the first existing file among the candidates.
// An explicit path that does not exist resolves to "" rather than falling
// through to the defaults.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return firstExisting(explicit)
	}
	candidates := []string{os.Getenv("KBAI_CONFIG")}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".kbai", "config.yaml"))
	}
	return firstExisting(append(candidates, "kbai.yaml")...)
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// intStr formats v, or "" for zero.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// float32Str formats v with the shortest exact representation, or "" for
// zero.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}

// boolStr returns "true", or "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
