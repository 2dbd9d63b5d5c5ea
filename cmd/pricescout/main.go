package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pricescout/config"
	"pricescout/models"
	"pricescout/orchestrator"
	"pricescout/render"
	"pricescout/report"
	"pricescout/sources"
)

func main() {
	// Local overrides for development; absence is not an error.
	_ = godotenv.Load()

	defaultCfg := config.DefaultConfig()
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("PRICESCOUT_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("PRICESCOUT_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	browserDefault := defaultCfg.BrowserURL
	if value, ok := config.EnvString("PRICESCOUT_BROWSER_URL"); ok {
		browserDefault = value
	}
	concurrencyDefault := defaultCfg.PageConcurrency
	if value, ok, err := config.EnvInt("PRICESCOUT_PAGE_CONCURRENCY"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid PRICESCOUT_PAGE_CONCURRENCY: %v\n", err)
		os.Exit(1)
	} else if ok {
		concurrencyDefault = value
	}

	configPath := flag.String("config", "", "YAML config file (flags override it)")
	queriesFlag := flag.String("queries", "", "Comma-separated search queries")
	sourcesFlag := flag.String("sources", "", "Comma-separated sources to enable (amazon, flipkart, snapdeal)")
	maxProducts := flag.Int("max-products", 0, "Maximum products collected per source")
	concurrency := flag.Int("page-concurrency", concurrencyDefault, "Concurrent result pages per source")
	sortBy := flag.String("sort", "", "Sort criterion: price_asc, price_desc, rating_asc, rating_desc, discount_desc")
	globalSort := flag.Bool("global-sort", false, "Rank all queries' products in one combined order")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", "", "Output format: csv, json, or dual")
	browserURL := flag.String("browser-url", browserDefault, "WebSocket URL of a remote Chrome (empty launches a local one)")
	headless := flag.Bool("headless", true, "Run the local browser headless")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	interval := flag.Duration("interval", 0, "Re-run the batch on this interval (0 runs once)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	logger := newLogger(*verbose)
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("loading configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Flags passed on the command line win over the config file; flag
	// defaults do not.
	if *queriesFlag != "" {
		cfg.Queries = nil
		for _, text := range strings.Split(*queriesFlag, ",") {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			cfg.Queries = append(cfg.Queries, models.SearchQuery{Text: text})
		}
	}
	if *sourcesFlag != "" {
		cfg.Sources = nil
		for _, name := range strings.Split(*sourcesFlag, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name != "" {
				cfg.Sources = append(cfg.Sources, name)
			}
		}
	}
	if *maxProducts > 0 {
		cfg.MaxProductsPerSource = *maxProducts
	}
	if setFlags["page-concurrency"] || concurrencyDefault != defaultCfg.PageConcurrency {
		cfg.PageConcurrency = *concurrency
	}
	if *sortBy != "" {
		cfg.Settings.SortBy = config.SortCriterion(strings.ToLower(*sortBy))
	}
	if *globalSort {
		cfg.Settings.GlobalSort = true
	}
	if setFlags["output"] || outputDefault != defaultCfg.OutputFile || cfg.OutputFile == "" {
		cfg.OutputFile = *outputFile
	}
	if *outputFormat != "" {
		cfg.OutputFormat = strings.ToLower(*outputFormat)
	}
	if setFlags["browser-url"] || browserDefault != "" {
		cfg.BrowserURL = *browserURL
	}
	if setFlags["headless"] {
		cfg.Headless = *headless
	}
	if setFlags["metrics-addr"] || metricsDefault != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *interval > 0 {
		cfg.RunInterval = config.Duration(*interval)
	}
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if len(cfg.Queries) == 0 {
		slog.Error("no queries given; use -queries or the config file")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := sources.NewMetrics()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	var browser render.Browser
	if needsBrowser(cfg) {
		rodBrowser, err := render.NewRodBrowser(render.RodConfig{
			RemoteURL: cfg.BrowserURL,
			Headless:  cfg.Headless,
			Logger:    logger,
		})
		if err != nil {
			slog.Error("starting browser", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := rodBrowser.Close(); err != nil {
				slog.Error("closing browser", slog.Any("error", err))
			}
		}()
		browser = rodBrowser
	}

	registry, err := sources.Build(cfg, browser, metrics)
	if err != nil {
		slog.Error("building sources", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := report.New(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	runner := orchestrator.NewBatchRunner(orchestrator.New(registry))
	runner.SetResultHook(func(batch *models.BatchResult) {
		slog.Info("batch ready",
			slog.String("batch_id", batch.BatchID),
			slog.Int("products", batch.TotalProducts),
		)
	})

	runOnce := func() {
		batch, err := runner.Run(ctx, cfg.Queries, cfg.Settings)
		if err != nil {
			if errors.Is(err, orchestrator.ErrRunInProgress) {
				slog.Warn("previous batch still running, skipping this trigger")
				return
			}
			slog.Error("batch failed", slog.Any("error", err))
			return
		}
		if err := writer.Write(batch); err != nil {
			slog.Error("writing results", slog.Any("error", err))
			return
		}
		if err := writer.Validate(); err != nil {
			slog.Error("output validation failed", slog.Any("error", err))
			return
		}
		printSummary(batch, cfg.OutputFile)
	}

	runOnce()
	if cfg.RunInterval > 0 {
		ticker := time.NewTicker(cfg.RunInterval.Std())
		defer ticker.Stop()
		slog.Info("scheduler enabled", slog.Duration("interval", cfg.RunInterval.Std()))
		for {
			select {
			case <-ctx.Done():
				slog.Info("shutdown signal received")
				shutdownMetrics(metricsServer)
				return
			case <-ticker.C:
				runOnce()
			}
		}
	}

	shutdownMetrics(metricsServer)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

// needsBrowser reports whether any enabled source renders pages in a
// real browser. Static sources scrape plain HTTP and skip the cost of
// launching Chrome.
func needsBrowser(cfg *config.Config) bool {
	for _, name := range cfg.Sources {
		if name == "amazon" || name == "flipkart" {
			return true
		}
	}
	return false
}

func printSummary(batch *models.BatchResult, outputFile string) {
	stats := orchestrator.Stats(batch)
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Batch complete")
	fmt.Printf("  Queries:        %d (%d ok, %d failed)\n",
		stats.TotalQueries, stats.SuccessfulQueries, stats.FailedQueries)
	fmt.Printf("  Products:       %d\n", stats.TotalProducts)
	fmt.Printf("  Sources:        %d tried, %d ok, %d failed\n",
		stats.SourcesTried, stats.SuccessfulSources, stats.FailedSources)
	fmt.Printf("  Avg per query:  %.1f products in %.0f ms\n",
		stats.AvgProductsPerQuery, stats.AvgProcessingTimeMs)
	if len(batch.Errors) > 0 {
		fmt.Printf("  Batch errors:   %d\n", len(batch.Errors))
	}
	fmt.Printf("  Duration:       %d ms\n", batch.TotalDurationMs)
	fmt.Printf("  Output file:    %s\n", outputFile)
	fmt.Println(separator)
}

func shutdownMetrics(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
