package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/listing-collector/pkg/cache"
	"github.com/Sternrassler/listing-collector/pkg/client"
	"github.com/Sternrassler/listing-collector/pkg/collector"
	"github.com/Sternrassler/listing-collector/pkg/config"
	"github.com/Sternrassler/listing-collector/pkg/dedup"
	"github.com/Sternrassler/listing-collector/pkg/listing"
	"github.com/Sternrassler/listing-collector/pkg/logging"
	"github.com/Sternrassler/listing-collector/pkg/metrics"
	"github.com/Sternrassler/listing-collector/pkg/places"
	"github.com/Sternrassler/listing-collector/pkg/sink"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}

// options are the command-line overrides shared by all subcommands.
type options struct {
	envFile        string
	logLevel       string
	output         string
	maxPages       int
	offsetStep     int
	redisURL       string
	metricsAddr    string
	dedupe         bool
	extended       bool
	expandViewport bool
	tsv            bool

	lat, lng float64
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "listing-collector",
		Short:         "Collects restaurant listings for cities into a CSV file.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.envFile, "env-file", ".env", "Optional .env file to load.")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error).")
	pf.StringVar(&opts.redisURL, "redis-url", "", "Redis URL for the place cache and dedup set.")
	pf.BoolVar(&opts.expandViewport, "expand-viewport", false, "Also query the viewport corners of every city.")

	collect := &cobra.Command{
		Use:   "collect [city...]",
		Short: "Resolves cities and writes their restaurant listings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runCollect(cmd.Context(), cfg, opts, cmd, args)
		},
	}
	f := collect.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "CSV output path.")
	f.IntVar(&opts.maxPages, "max-pages", 0, "Maximum pages per location.")
	f.IntVar(&opts.offsetStep, "offset-step", 0, "Multiplier from page index to wire offset.")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address.")
	f.BoolVar(&opts.dedupe, "dedupe", false, "Skip restaurants already written in this run.")
	f.BoolVar(&opts.extended, "extended", false, "Add the Serviceability column.")
	f.Float64Var(&opts.lat, "lat", 0, "Skip place resolution and collect at this latitude (requires one city).")
	f.Float64Var(&opts.lng, "lng", 0, "Longitude for --lat.")
	collect.MarkFlagsRequiredTogether("lat", "lng")

	resolve := &cobra.Command{
		Use:   "resolve [city...]",
		Short: "Prints the locations a city resolves to.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runResolve(cmd.Context(), cfg, opts, cmd, args)
		},
	}
	resolve.Flags().BoolVar(&opts.tsv, "tsv", false, "Print tab-separated values instead of a table.")

	root.AddCommand(collect, resolve)
	return root
}

// loadConfig reads the environment and applies the flags that were set.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	changed := cmd.Flags().Changed
	if changed("log-level") {
		if cfg.LogLevel, err = logging.ParseLevel(opts.logLevel); err != nil {
			return cfg, err
		}
	}
	if changed("output") {
		cfg.OutputPath = opts.output
	}
	if changed("max-pages") {
		cfg.MaxPages = opts.maxPages
	}
	if changed("offset-step") {
		cfg.OffsetStep = opts.offsetStep
	}
	if changed("redis-url") {
		cfg.RedisURL = opts.redisURL
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if changed("dedupe") {
		cfg.Dedupe = opts.dedupe
	}
	if changed("extended") {
		cfg.ExtendedSchema = opts.extended
	}
	if changed("expand-viewport") {
		cfg.ExpandViewport = opts.expandViewport
	}

	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	return cfg, cfg.Validate()
}

func runCollect(ctx context.Context, cfg config.Config, opts *options, cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger(logging.ComponentCLI)

	cities := args
	if len(cities) == 0 {
		cities = cfg.Cities
	}
	if len(cities) == 0 {
		return errors.New("no cities given (pass them as arguments or set CITIES)")
	}

	rdb, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, rdb)
		defer shutdown()
	}

	var locations []listing.Location
	if cmd.Flags().Changed("lat") {
		if len(cities) != 1 {
			return errors.New("--lat/--lng need exactly one city")
		}
		locations = []listing.Location{{City: cities[0], Lat: opts.lat, Lng: opts.lng}}
	} else {
		resolver, err := newResolver(cfg, rdb)
		if err != nil {
			return err
		}
		if locations, err = resolver.ResolveAll(ctx, cities); err != nil {
			return fmt.Errorf("resolve cities: %w", err)
		}
	}
	if len(locations) == 0 {
		return errors.New("no locations resolved")
	}

	httpClient, err := client.New(client.Config{UserAgent: cfg.UserAgent, Timeout: cfg.HTTPTimeout})
	if err != nil {
		return err
	}
	fetcher, err := listing.NewHTTPFetcher(httpClient, cfg.Endpoint(), logging.NewLogger(logging.ComponentFetcher))
	if err != nil {
		return err
	}
	writer := sink.NewCSVWriter(cfg.OutputPath, cfg.Schema(), logging.NewLogger(logging.ComponentSink))

	ccfg := collector.DefaultConfig()
	ccfg.Pagination.MaxPages = cfg.MaxPages
	ccfg.Retry = client.ForbiddenPolicy(cfg.ForbiddenDelay)
	if cfg.Dedupe {
		ccfg.Dedup = newDedupStore(rdb, cfg.DedupTTL)
	}

	c, err := collector.New(fetcher, writer, ccfg, logging.NewLogger(logging.ComponentCollector))
	if err != nil {
		return err
	}

	sum, err := c.Run(ctx, locations)
	logger.Info().
		Str("output", writer.Path()).
		Int("locations", sum.Locations).
		Int("rows", sum.Rows).
		Int("duplicates", sum.Duplicates).
		Int("failed", len(sum.Failed)).
		Msg("Run finished")
	for _, f := range sum.Failed {
		logger.Warn().Err(f.Err).Str("city", f.Location.City).Int("offset", f.Offset).Msg("Location not collected")
	}
	return err
}

func runResolve(ctx context.Context, cfg config.Config, opts *options, cmd *cobra.Command, args []string) error {
	cities := args
	if len(cities) == 0 {
		cities = cfg.Cities
	}

	rdb, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	resolver, err := newResolver(cfg, rdb)
	if err != nil {
		return err
	}
	locations, err := resolver.ResolveAll(ctx, cities)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.tsv {
		for _, loc := range locations {
			fmt.Fprintf(out, "%s\t%.6f\t%.6f\t%s\n", loc.City, loc.Lat, loc.Lng, loc.Address)
		}
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"City", "Lat", "Lng", "Place ID", "Address"})
	for _, loc := range locations {
		t.AppendRow(table.Row{loc.City, fmt.Sprintf("%.6f", loc.Lat), fmt.Sprintf("%.6f", loc.Lng), loc.PlaceID, loc.Address})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

func newResolver(cfg config.Config, rdb *redis.Client) (*places.Resolver, error) {
	var c places.Cache
	if rdb != nil {
		c = cache.NewManager(rdb)
	}
	return places.NewResolver(places.Config{
		BaseURL:        cfg.PlacesBaseURL,
		UserAgent:      cfg.UserAgent,
		Cookie:         cfg.Cookie,
		Timeout:        cfg.HTTPTimeout,
		ExpandViewport: cfg.ExpandViewport,
	}, c, logging.NewLogger(logging.ComponentPlaces))
}

// newDedupStore shares the seen set through Redis when available.
func newDedupStore(rdb *redis.Client, ttl time.Duration) dedup.Store {
	if rdb == nil {
		return dedup.NewMemoryStore()
	}
	runID := uuid.New().String()
	log.Info().Str("run_id", runID).Msg("Using shared dedup set")
	return dedup.NewRedisStore(rdb, runID, ttl)
}

// connectRedis returns nil when url is empty.
func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	return rdb, nil
}

func newMetricsMux(rdb *redis.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(rdb))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// serveMetrics starts the metrics listener and returns its shutdown func.
func serveMetrics(addr string, rdb *redis.Client) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMetricsMux(rdb),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports 503 while a configured Redis is unreachable.
func readyHandler(rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rdb != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}
