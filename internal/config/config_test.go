package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// writeConfig stores body as a YAML file in a fresh temp dir.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// unsetAll clears keys for the duration of the test.
func unsetAll(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_ExportsEverySection(t *testing.T) {
	want := map[string]string{
		"MODEL_PROVIDER":           "azure",
		"MODEL_TEMPERATURE":        "0.3",
		"AZURE_OPENAI_DEPLOYMENT":  "gpt-4o",
		"AZURE_OPENAI_API_VERSION": "2025-04-01-preview",
		"EMBEDDING_MODEL":          "nomic-embed-text",
		"STORE_BACKEND":            "qdrant",
		"QDRANT_PORT":              "6334",
		"QDRANT_TLS":               "true",
		"KBAI_CODE_EXTENSIONS":     ".py,.c",
		"KBAI_CHUNK_OVERLAP":       "100",
		"KBAI_TOP_K":               "5",
		"KBAI_ANSWER_LANGUAGE":     "Spanish",
		"KBAI_WRAP_WIDTH":          "80",
		"GITHUB_DEFAULT_USER":      "octocat",
		"KBAI_PORT":                "9090",
		"LOG_FILE":                 "/tmp/kbai.log",
	}
	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	unsetAll(t, keys...)

	path := writeConfig(t, `
model:
  provider: azure
  temperature: 0.3
  azure:
    deployment: gpt-4o
    api_version: "2025-04-01-preview"
embedding:
  model: nomic-embed-text
store:
  backend: qdrant
qdrant:
  port: 6334
  tls: true
ingest:
  code_extensions: ".py,.c"
  chunk_overlap: 100
retrieval:
  top_k: 5
answer:
  language: Spanish
  wrap_width: 80
github:
  default_user: octocat
server:
  port: 9090
logging:
  file: /tmp/kbai.log
`)

	loaded, err := Load(path, discard)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != path {
		t.Errorf("loaded %q, want %q", loaded, path)
	}
	for k, v := range want {
		if got := os.Getenv(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestLoad_ExistingEnvWins(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "gemini")
	unsetAll(t, "OLLAMA_MODEL")

	path := writeConfig(t, "model:\n  provider: ollama\n  ollama:\n    model: llama3\n")
	if _, err := Load(path, discard); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := os.Getenv("MODEL_PROVIDER"); got != "gemini" {
		t.Errorf("MODEL_PROVIDER = %q, env value should be kept", got)
	}
	if got := os.Getenv("OLLAMA_MODEL"); got != "llama3" {
		t.Errorf("OLLAMA_MODEL = %q, unset var should be filled", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", "{{not yaml", "parse"},
		{"unknown section", "modle:\n  provider: openai\n", "modle"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body), discard)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("want error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeConfig(t, "")
	if got, err := Load(path, discard); err != nil || got != path {
		t.Errorf("Load(empty) = %q, %v", got, err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()
	got, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), discard)
	if err != nil || got != "" {
		t.Errorf("Load(absent) = %q, %v; want no file and no error", got, err)
	}
}

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	fromEnv := filepath.Join(dir, "kbai.yaml")
	if err := os.WriteFile(fromEnv, []byte("answer:\n  language: German\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KBAI_CONFIG", fromEnv)

	if got := resolveConfigPath(""); got != fromEnv {
		t.Errorf("KBAI_CONFIG: got %q, want %q", got, fromEnv)
	}
	if got := resolveConfigPath(filepath.Join(dir, "missing.yaml")); got != "" {
		t.Errorf("missing explicit path should not fall through, got %q", got)
	}
	if got := resolveConfigPath(dir); got != "" {
		t.Errorf("a directory is not a config file, got %q", got)
	}
}

func TestFormatters(t *testing.T) {
	t.Parallel()
	tests := []struct{ got, want string }{
		{float32Str(0), ""},
		{float32Str(0.2), "0.2"},
		{float32Str(1), "1"},
		{intStr(0), ""},
		{intStr(6334), "6334"},
		{boolStr(false), ""},
		{boolStr(true), "true"},
	}
	for i, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("case %d: got %q, want %q", i, tc.got, tc.want)
		}
	}
}
