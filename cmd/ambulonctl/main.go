package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"ambulon/internal/config"
	"ambulon/internal/crawler"
	"ambulon/internal/scape"
	"ambulon/internal/stats"
	"ambulon/internal/storage"
	"ambulon/internal/transport/ws"
	ambapi "ambulon/pkg/ambulon"
)

const (
	benchmarksDir = "benchmarks"
	exportsDir    = "exports"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "serve":
		return runServe(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "episodes":
		return runEpisodes(ctx, args[1:])
	case "rewards":
		return runRewards(ctx, args[1:])
	case "scape-summary":
		return runScapeSummary(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "ambulon.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	if err := store.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "ambulon.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *storeKind == "sqlite" {
		if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	if err := store.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config YAML path")
	variant := fs.String("variant", "", "crawler variant: fixed-target|fixed-target-variable-speed|far-target|far-target-variable-speed")
	mode := fs.String("mode", "", "evaluation mode: gt|validation|test|benchmark")
	targetSpeed := fs.Float64("target-speed", -1, "commanded walking speed (0 resamples per episode on variable-speed variants)")
	maxSpeed := fs.Float64("max-speed", -1, "upper bound for commanded speed")
	maxForce := fs.Float64("max-force", -1, "maximum joint strength")
	episodes := fs.Int("episodes", -1, "episode count")
	seed := fs.Uint64("seed", 0, "rng seed (episode i runs with seed+i)")
	traceDir := fs.String("trace-dir", "", "write per-step traces to this directory")
	storeKind := fs.String("store", "", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "ambulon.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *variant != "" {
		cfg.Variant = *variant
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *targetSpeed >= 0 {
		cfg.TargetSpeed = *targetSpeed
	}
	if *maxSpeed > 0 {
		cfg.MaxSpeed = *maxSpeed
	}
	if *maxForce > 0 {
		cfg.MaxJointForce = *maxForce
	}
	if *episodes > 0 {
		cfg.Episodes = *episodes
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if *traceDir != "" {
		cfg.TraceDir = *traceDir
	}
	if *storeKind != "" {
		cfg.Store.Kind = *storeKind
		cfg.Store.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := ambapi.New(ambapi.Options{
		StoreKind:     cfg.Store.Kind,
		DBPath:        cfg.Store.Path,
		BenchmarksDir: benchmarksDir,
		ExportsDir:    exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, ambapi.RunRequest{
		Variant:       cfg.Variant,
		Mode:          cfg.Mode,
		TargetSpeed:   cfg.TargetSpeed,
		MaxSpeed:      cfg.MaxSpeed,
		MaxJointForce: cfg.MaxJointForce,
		Episodes:      cfg.Episodes,
		Seed:          cfg.Seed,
		TraceDir:      cfg.TraceDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s episodes=%d mean_reward=%.6f best_reward=%.6f goals=%d artifacts=%s\n",
		summary.RunID,
		len(summary.RewardByEpisode),
		summary.MeanReward,
		summary.BestReward,
		summary.GoalsReached,
		summary.ArtifactsDir,
	)
	return nil
}

func runServe(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config YAML path")
	addr := fs.String("addr", "", "listen address (host:port)")
	episodes := fs.Int("episodes", -1, "episodes per connection")
	variant := fs.String("variant", "", "crawler variant offered to policies")
	targetSpeed := fs.Float64("target-speed", -1, "commanded walking speed")
	maxSpeed := fs.Float64("max-speed", -1, "upper bound for commanded speed")
	maxForce := fs.Float64("max-force", -1, "maximum joint strength")
	seed := fs.Uint64("seed", 0, "rng seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Bridge.Addr = *addr
	}
	if *episodes > 0 {
		cfg.Bridge.Episodes = *episodes
	}
	if *variant != "" {
		cfg.Variant = *variant
	}
	if *targetSpeed >= 0 {
		cfg.TargetSpeed = *targetSpeed
	}
	if *maxSpeed > 0 {
		cfg.MaxSpeed = *maxSpeed
	}
	if *maxForce > 0 {
		cfg.MaxJointForce = *maxForce
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	parsedVariant, err := crawler.ParseVariant(cfg.Variant)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "ambulon-ws ", log.LstdFlags)
	server := ws.NewServer(scape.CrawlerScape{
		Variant:       parsedVariant,
		TargetSpeed:   cfg.TargetSpeed,
		MaxSpeed:      cfg.MaxSpeed,
		MaxJointForce: cfg.MaxJointForce,
		Seed:          cfg.Seed,
	}, cfg.Bridge.Episodes, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.Handler())

	logger.Printf("listening on %s variant=%s episodes=%d", cfg.Bridge.Addr, cfg.Variant, cfg.Bridge.Episodes)
	return http.ListenAndServe(cfg.Bridge.Addr, mux)
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	entries, err := stats.ListRunIndex(benchmarksDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	if len(entries) > *limit {
		entries = entries[:*limit]
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for _, e := range entries {
		fmt.Printf("run_id=%s created_at=%s variant=%s mode=%s policy=%s seed=%d episodes=%d mean_reward=%.6f best_reward=%.6f\n",
			e.RunID,
			e.CreatedAtUTC,
			e.Variant,
			e.Mode,
			e.Policy,
			e.Seed,
			e.Episodes,
			e.MeanReward,
			e.BestReward,
		)
	}
	return nil
}

func runEpisodes(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("episodes", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	jsonOut := fs.Bool("json", false, "emit episodes as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "ambulon.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}

	client, err := ambapi.New(ambapi.Options{
		StoreKind:     *storeKind,
		DBPath:        *dbPath,
		BenchmarksDir: benchmarksDir,
		ExportsDir:    exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	episodes, err := client.Episodes(ctx, ambapi.EpisodesRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(episodes)
	}
	for _, e := range episodes {
		fmt.Printf("episode=%d steps=%d reward=%.6f target_speed=%.3f spawn_yaw=%.1f reason=%s goal=%t\n",
			e.Index,
			e.Steps,
			e.Reward,
			e.TargetSpeed,
			e.SpawnYawDeg,
			e.TerminationReason,
			e.GoalReached,
		)
	}
	return nil
}

func runRewards(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rewards", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "ambulon.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}

	client, err := ambapi.New(ambapi.Options{
		StoreKind:     *storeKind,
		DBPath:        *dbPath,
		BenchmarksDir: benchmarksDir,
		ExportsDir:    exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.RewardHistory(ctx, ambapi.RewardHistoryRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}

	summary := stats.Summarize(history)
	for i, reward := range history {
		fmt.Printf("episode=%d reward=%.6f\n", i, reward)
	}
	fmt.Printf("count=%d mean=%.6f std=%.6f min=%.6f max=%.6f median=%.6f p90=%.6f\n",
		summary.Count, summary.Mean, summary.StdDev, summary.Min, summary.Max, summary.Median, summary.P90)
	return nil
}

func runScapeSummary(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scape-summary", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "ambulon.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := ambapi.New(ambapi.Options{
		StoreKind:     *storeKind,
		DBPath:        *dbPath,
		BenchmarksDir: benchmarksDir,
		ExportsDir:    exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.ScapeSummary(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("scape=%s best_reward=%.6f description=%q\n", summary.Name, summary.BestReward, summary.Description)
	return nil
}

func runExport(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}
	if *latest {
		entries, err := stats.ListRunIndex(benchmarksDir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return errors.New("no runs available to export")
		}
		*runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(benchmarksDir, *runID, *outDir)
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s\n", *runID, filepath.Clean(exportedDir))
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: ambulonctl <init|reset|run|serve|runs|episodes|rewards|scape-summary|export> [flags]", msg)
}
