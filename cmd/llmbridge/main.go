// llmbridge runs the provider manager as a standalone process: it loads the
// provider configuration, initializes every enabled backend, and serves the
// operational endpoints (/metrics for Prometheus, /healthz for probes).
// The request-facing transport that exposes generate/stream to remote
// callers is a separate collaborator and not part of this binary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/llmbridge/config"
	"github.com/BaSui01/llmbridge/llm/factory"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to the provider configuration file (JSON or YAML)")
		listenAddr  = flag.String("listen", ":9090", "address for the operational HTTP endpoints")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("llmbridge %s (built %s)\n", version, buildTime)
		return
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(*configPath, *listenAddr, logger); err != nil {
		logger.Fatal("llmbridge failed", zap.Error(err))
	}
}

func run(configPath, listenAddr string, logger *zap.Logger) error {
	cfg, err := config.Load(configPath, logger)
	if err != nil {
		return err
	}

	mgr := factory.NewManager(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	if err := mgr.Initialize(initCtx); err != nil {
		return err
	}
	defer mgr.Shutdown()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		probeCtx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		results := mgr.HealthCheckAll(probeCtx)

		anyHealthy := false
		for _, ok := range results {
			if ok {
				anyHealthy = true
				break
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if !anyHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(results)
	})
	mux.HandleFunc("/providers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(mgr.ProviderStatuses())
	})

	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("operational endpoints listening", zap.String("addr", listenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", zap.Error(err))
	}
	return nil
}
