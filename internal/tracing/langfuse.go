// Package tracing wires Langfuse into eino's global callback chain so every
// chat model call (RAG answers, tool selection, tool answers) is traced.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/kbai-go/internal/version"
)

// defaultHost is the local Langfuse instance used when LANGFUSE_HOST is unset.
const defaultHost = "http://localhost:3000"

// Enable registers a Langfuse handler on eino's global callback chain when
// LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY are both set, and returns the
// function that flushes pending traces. Callers defer it; it is a no-op when
// tracing is off.
func Enable() func() {
	cfg, ok := configFromEnv()
	if !ok {
		return func() {}
	}
	handler, flush := langfuse.NewLangfuseHandler(cfg)
	callbacks.AppendGlobalHandlers(handler)
	return flush
}

func configFromEnv() (*langfuse.Config, bool) {
	pk, sk := os.Getenv("LANGFUSE_PUBLIC_KEY"), os.Getenv("LANGFUSE_SECRET_KEY")
	if pk == "" || sk == "" {
		return nil, false
	}
	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultHost
	}
	return &langfuse.Config{
		Host:      host,
		PublicKey: pk,
		SecretKey: sk,
		Name:      "kbai",
		Release:   version.Version,
	}, true
}
