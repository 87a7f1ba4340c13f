// Craftd is a daemon that turns a one-line goal into a working,
// tested project through a multi-stage LLM pipeline.
//
// The daemon exposes an HTTP API for creating projects, inspecting
// their state and artifacts, running architecture analysis and
// playing sabotage challenges. Progress events flow over NATS and are
// bridged to clients as Server-Sent Events.
//
// Usage:
//
//	# Start with defaults (./workspace artifacts, NATS on localhost)
//	CRAFTD_LLM_API_KEY=... craftd
//
//	# Start with a config file
//	craftd -config craftd.yaml
//
//	# Configure via environment
//	CRAFTD_SERVER_PORT=9000 craftd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/agents"
	"github.com/fyrsmithlabs/craftd/internal/config"
	"github.com/fyrsmithlabs/craftd/internal/events"
	httpapi "github.com/fyrsmithlabs/craftd/internal/http"
	"github.com/fyrsmithlabs/craftd/internal/llm"
	"github.com/fyrsmithlabs/craftd/internal/logging"
	"github.com/fyrsmithlabs/craftd/internal/orchestrator"
	"github.com/fyrsmithlabs/craftd/internal/project"
	"github.com/fyrsmithlabs/craftd/internal/runner"
	"github.com/fyrsmithlabs/craftd/internal/store"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  craftd            Start the craftd daemon\n")
			fmt.Fprintf(os.Stderr, "  craftd version    Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("craftd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until the context is cancelled.
//
//  1. Loads and validates configuration
//  2. Initializes the logger
//  3. Starts or connects NATS for progress events
//  4. Wires store, LLM client, agents, verifier and orchestrator
//  5. Starts the HTTP server
//  6. Performs graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("Starting craftd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("workspace", cfg.Workspace.Root),
		zap.String("model", cfg.LLM.Model))

	deps, err := initDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	logger.Info("Dependencies initialized",
		zap.Bool("nats_embedded", deps.natsServer != nil),
		zap.Bool("nats_connected", deps.natsConn != nil))

	orch, err := initOrchestrator(cfg, deps, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}
	defer orch.Close()

	srv, err := httpapi.NewServer(orch, deps.store, deps.natsConn, cfg.Server, logger)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	logger.Info("Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("api_prefix", "/api"),
		zap.String("metrics_endpoint", "/metrics"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout))
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// dependencies holds all infrastructure dependencies.
type dependencies struct {
	natsServer *natsserver.Server
	natsConn   *nats.Conn
	sink       events.Sink
	store      store.Store
	logger     *zap.Logger
}

// Close releases infrastructure resources.
func (d *dependencies) Close() {
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if d.natsServer != nil {
		d.natsServer.Shutdown()
	}
}

// initDependencies sets up NATS (embedded or external) and the
// artifact store. A missing NATS connection degrades to a no-op sink
// rather than blocking startup: progress events are observability,
// not correctness.
func initDependencies(cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	deps := &dependencies{sink: events.NopSink{}, logger: logger}

	natsURL := cfg.NATS.URL
	if cfg.NATS.Embedded {
		ns, err := events.StartEmbeddedServer()
		if err != nil {
			return nil, fmt.Errorf("failed to start embedded NATS: %w", err)
		}
		deps.natsServer = ns
		natsURL = ns.ClientURL()
		logger.Info("Embedded NATS server started", zap.String("url", natsURL))
	}

	if natsURL != "" {
		nc, err := events.Connect(natsURL)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
		}
		deps.natsConn = nc
		sink, err := events.NewNATSSink(nc, logger)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.sink = sink
		logger.Info("Connected to NATS", zap.String("url", natsURL))
	} else {
		logger.Warn("No NATS configured, progress events disabled")
	}

	st, err := store.New(cfg.Workspace, logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}
	deps.store = st

	return deps, nil
}

// initOrchestrator wires the LLM client, agents and verifier into the
// pipeline orchestrator.
func initOrchestrator(cfg *config.Config, deps *dependencies, logger *zap.Logger) (*orchestrator.Orchestrator, error) {
	client, err := llm.New(cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	ag := orchestrator.Agents{
		Planner:   agents.NewPlanner(client, logger),
		Developer: agents.NewDeveloper(client, logger),
		Enforcer:  agents.NewEnforcer(client, logger),
		Tester:    agents.NewTester(client, logger),
		Fixer:     agents.NewFixer(client, logger),
		Saboteur:  agents.NewSaboteur(client, logger),
		Analyzer:  agents.NewAnalyzer(client, logger),
	}

	// Registered on the default registry so the /metrics endpoint
	// picks them up.
	metrics := orchestrator.NewMetrics(prometheus.DefaultRegisterer)
	return orchestrator.New(
		cfg.Pipeline,
		ag,
		project.NewRegistry(),
		deps.store,
		runner.New(logger),
		deps.sink,
		metrics,
		logger,
	)
}
