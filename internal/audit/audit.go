// Package audit writes one structured record per CLI invocation: the
// command, the config file in effect, and the kbai settings read from the
// environment, grouped by concern. Credentials are reported as set/unset
// only.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// section is one slog group of the audit record.
type section struct {
	name string
	keys []string
}

// sections lists the recorded variables in output order.
var sections = []section{
	{"model", []string{
		"MODEL_PROVIDER", "OLLAMA_HOST", "OLLAMA_MODEL", "OPENAI_API_KEY", "OPENAI_MODEL",
		"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT",
		"GOOGLE_API_KEY", "GEMINI_MODEL", "AWS_REGION", "BEDROCK_MODEL_ID", "AWS_BEARER_TOKEN_BEDROCK",
	}},
	{"embedding", []string{"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_API_KEY"}},
	{"store", []string{
		"STORE_BACKEND", "KBAI_STORE_PATH", "QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION", "QDRANT_API_KEY",
	}},
	{"ingest", []string{
		"KBAI_PDF_DIR", "KBAI_CODE_DIR", "KBAI_CODE_EXTENSIONS", "KBAI_CHUNK_SIZE", "KBAI_CHUNK_OVERLAP",
	}},
	{"retrieval", []string{"KBAI_TOP_K", "KBAI_MAX_CONTEXT_TOKENS", "KBAI_ANSWER_LANGUAGE"}},
	{"github", []string{"GITHUB_TOKEN", "GITHUB_DEFAULT_USER", "GITHUB_BASE_URL"}},
	{"server", []string{"KBAI_HOST", "KBAI_PORT", "KBAI_API_KEY"}},
	{"logging", []string{"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE"}},
	{"tracing", []string{"LANGFUSE_HOST", "LANGFUSE_PUBLIC_KEY", "LANGFUSE_SECRET_KEY"}},
}

// secretSuffixes mark variables whose values are never logged.
var secretSuffixes = []string{"_KEY", "_TOKEN", "_SECRET", "_TOKEN_BEDROCK"}

// LogCommandStart records the start of command.
func LogCommandStart(log *slog.Logger, command, configPath string) {
	attrs := make([]slog.Attr, 0, len(sections)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, s := range sections {
		group := make([]any, 0, len(s.keys))
		for _, k := range s.keys {
			group = append(group, slog.String(k, SanitiseKey(k, os.Getenv(k))))
		}
		attrs = append(attrs, slog.Group(s.name, group...))
	}
	log.LogAttrs(context.Background(), slog.LevelInfo, "audit: command start", attrs...)
}

// IsSecret reports whether key names a credential.
func IsSecret(key string) bool {
	for _, suf := range secretSuffixes {
		if strings.HasSuffix(key, suf) {
			return true
		}
	}
	return false
}

// SanitiseKey returns the loggable form of an env value: "set"/"unset" for
// credentials, the value or "unset" otherwise.
func SanitiseKey(key, value string) string {
	switch {
	case IsSecret(key):
		return presence(value)
	case value == "":
		return "unset"
	default:
		return value
	}
}

func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// sanitiseConfigPath shortens the home directory to "~"; no path is "none".
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(p, home+string(os.PathSeparator)) {
		return "~" + p[len(home):]
	}
	return p
}
