package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/kbai-go/internal/logging"
	"github.com/54b3r/kbai-go/internal/metrics"
	"github.com/54b3r/kbai-go/internal/provider"
	"github.com/54b3r/kbai-go/internal/server"
	"github.com/54b3r/kbai-go/internal/tracing"
)

// NewServeCmd constructs the `kbai serve` command, which exposes the
// assistant over a local HTTP API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var ingest bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the kbai HTTP API",
		Long: `Start the kbai HTTP server on localhost.

Routes:
  POST /api/ask     answer a question, streamed as server-sent events
  GET  /api/tools   list the GitHub tools
  GET  /api/health  liveness
  GET  /api/ready   store and model reachability
  GET  /metrics     Prometheus metrics

Set KBAI_API_KEY to require a Bearer token on /api/ask and /api/tools.

Examples:
  kbai serve
  kbai serve --port 9090 --ingest
  MODEL_PROVIDER=openai kbai serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)
			defer tracing.Enable()()

			m := metrics.New(prometheus.DefaultRegisterer)

			kb, err := openKnowledgeBase(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer kb.Close()

			if ingest {
				if _, err := runIngestion(ctx, log, kb, ingestConfigFromEnv("", "", m)); err != nil {
					return fmt.Errorf("serve: %w", err)
				}
			}

			registry, err := buildRegistry(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			dispatcher, err := buildDispatcher(ctx, log, kb, registry, m)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := []server.Pinger{server.NewStorePinger(kb.store, kb.backend)}
			if providerCfg := provider.ConfigFromEnv(); providerCfg.Backend == provider.BackendOllama {
				url := strings.TrimRight(providerCfg.Ollama.Host, "/") + "/api/tags"
				pingers = append(pingers, server.NewHTTPPinger("ollama", url, nil))
				log.Debug("readiness probe registered", slog.String("url", url))
			}

			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("KBAI_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("KBAI_PORT", port)
			}

			srv, err := server.New(dispatcher, registry, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  getEnvOrDefault("KBAI_API_KEY", ""),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: KBAI_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env: KBAI_PORT)")
	cmd.Flags().BoolVar(&ingest, "ingest", false, "Synchronize the document and code directories before serving")

	return cmd
}
