// Command docmcp serves document templating and parsing operations over
// MCP, on stdio or over streamable HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/docmcp/audit"
	"github.com/hazyhaar/docmcp/config"
	"github.com/hazyhaar/docmcp/dispatch"
	"github.com/hazyhaar/docmcp/docpipe"
	"github.com/hazyhaar/docmcp/observability"
	"github.com/hazyhaar/docmcp/registry"
	"github.com/hazyhaar/docmcp/render"
	"github.com/hazyhaar/docmcp/schema"
	"github.com/hazyhaar/docmcp/shield"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "YAML or TOML config file")
	envFile := flag.String("env", ".env", "dotenv file, ignored when absent")
	logLevel := flag.String("log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// stdout carries the protocol in stdio mode.
	logger, err := observability.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		slog.Error("logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("docmcp stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := newApp(cfg, logger, promReg)
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info("docmcp starting",
		"transport", cfg.Transport,
		"template_dir", cfg.TemplateDir,
		"output_dir", cfg.OutputDir,
		"schema_file", cfg.SchemaFile,
		"max_file_size_mb", cfg.MaxFileSizeMB,
		"audit", cfg.AuditDB != "")

	if cfg.Transport == config.TransportStdio {
		err := app.server.Run(ctx, &mcp.StdioTransport{})
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(app.server, promReg, logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// app is the assembled server and what must be released on exit.
type app struct {
	server     *mcp.Server
	dispatcher *dispatch.Dispatcher
	closers    []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close", "error", err)
		}
	}
}

func newApp(cfg *config.Config, logger *slog.Logger, promReg prometheus.Registerer) (*app, error) {
	a := &app{}
	reg := registry.New()
	observability.RegisterDocumentsGauge(promReg, reg.Len)

	dcfg := dispatch.Config{
		Renderer: render.New(render.Config{
			TemplateDir: cfg.TemplateDir,
			OutputDir:   cfg.OutputDir,
			MaxFileSize: cfg.MaxFileSize(),
			Logger:      logger,
		}, reg),
		Registry: reg,
		Schemas:  schema.NewStore(cfg.SchemaFile),
		Parser:   docpipe.New(docpipe.Config{MaxFileSize: cfg.MaxFileSize(), Logger: logger}),
		Metrics:  observability.NewMetrics(promReg),
		Timeout:  cfg.OperationTimeout.Duration,
		Logger:   logger,
	}

	if cfg.AuditDB != "" {
		trail, db, err := audit.Open(cfg.AuditDB, audit.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close, trail.Close)
		dcfg.Audit = trail
	}

	a.dispatcher = dispatch.New(dcfg)
	a.server = mcp.NewServer(&mcp.Implementation{Name: "docmcp", Version: version}, nil)
	a.dispatcher.RegisterMCP(a.server)
	return a, nil
}

// maxRequestBody bounds JSON-RPC payloads on /mcp.
const maxRequestBody = 4 << 20

func newRouter(srv *mcp.Server, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(logger, maxRequestBody) {
		r.Use(mw)
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
	r.Handle("/mcp", mcpHandler)
	r.Handle("/mcp/*", mcpHandler)
	return r
}
