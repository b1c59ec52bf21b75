package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"order-exec-lab/internal/agent"
	"order-exec-lab/internal/config"
	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/evaluation"
	"order-exec-lab/internal/logging"
	"order-exec-lab/internal/simulation"
	"order-exec-lab/internal/storage"
	chstore "order-exec-lab/internal/storage/clickhouse"
	"order-exec-lab/internal/storage/memory"
	"order-exec-lab/internal/storage/migrations"
	pgstore "order-exec-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config (defaults to built-in config)")
	runID := flag.String("run-id", "", "Training run to evaluate (required)")
	episodes := flag.Int("episodes", 0, "Override number of evaluation episodes")
	evalSeed := flag.Int64("eval-seed", 0, "Override base seed for held-out episodes")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")

	// Output
	outputJSON := flag.Bool("json", false, "Output aggregate as JSON")
	persist := flag.Bool("persist", true, "Persist episode results and trajectories")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[evaluate] ", log.LstdFlags)

	if *runID == "" {
		logger.Fatal("--run-id is required")
	}

	// Load config
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatalf("load config: %v", err)
		}
	}
	if *episodes > 0 {
		cfg.Evaluation.Episodes = *episodes
	}
	if *evalSeed != 0 {
		cfg.Evaluation.Seed = *evalSeed
	}

	zlog := logging.New(cfg.App.LogLevel)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Create stores. Evaluation needs the run and its checkpoints, so
	// postgres is required.
	if *postgresDSN == "" {
		*postgresDSN = cfg.Storage.PostgresDSN
	}
	if *clickhouseDSN == "" {
		*clickhouseDSN = cfg.Storage.ClickhouseDSN
	}
	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (run metadata and checkpoints)")
	}

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("run postgres migrations: %v", err)
	}

	runStore := pgstore.NewTrainingRunStore(pool)
	resultStore := pgstore.NewEpisodeResultStore(pool)
	checkpointStore := pgstore.NewCheckpointStore(pool)

	var trajectoryStore storage.TrajectoryStore = memory.NewTrajectoryStore()
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("run clickhouse migrations: %v", err)
		}
		defer conn.Close()
		trajectoryStore = chstore.NewTrajectoryStore(conn)
	}

	// Load the run and rebuild its exact environment and agent
	run, err := runStore.GetByID(ctx, *runID)
	if err != nil {
		logger.Fatalf("load run %s: %v", *runID, err)
	}

	env, err := simulation.NewEnvironment(run.Params)
	if err != nil {
		logger.Fatalf("create environment: %v", err)
	}

	ag, err := agent.New(rand.New(rand.NewSource(run.Params.Seed)), run.Hyper, domain.ObservationDim, env.NumActions())
	if err != nil {
		logger.Fatalf("create agent: %v", err)
	}

	blobs := make(map[string][]byte)
	for _, component := range []string{domain.ComponentPolicy, domain.ComponentTarget} {
		c, err := checkpointStore.Get(ctx, *runID, component)
		if err != nil {
			logger.Fatalf("load %s checkpoint: %v", component, err)
		}
		blobs[component] = c.Blob
	}
	if err := ag.Restore(blobs); err != nil {
		logger.Fatalf("restore networks: %v", err)
	}

	// Evaluate
	ev, err := evaluation.New(env, ag, evaluation.Config{
		RunID:    *runID,
		Episodes: cfg.Evaluation.Episodes,
		Seed:     cfg.Evaluation.Seed,
		Logger:   zlog,
	})
	if err != nil {
		logger.Fatalf("create evaluator: %v", err)
	}

	logger.Printf("Evaluating run %s over %d held-out episodes", *runID, cfg.Evaluation.Episodes)

	out, err := ev.Run(ctx)
	if err != nil {
		logger.Fatalf("evaluate: %v", err)
	}

	// Persist
	if *persist {
		if err := resultStore.InsertBulk(ctx, out.Results); err != nil {
			logger.Fatalf("persist episode results: %v", err)
		}
		if err := trajectoryStore.InsertBulk(ctx, out.Trajectories); err != nil {
			logger.Fatalf("persist trajectories: %v", err)
		}
		err := runStore.UpdateOutcome(ctx, *runID, run.Status, run.EpisodesRun, out.Aggregate.MeanSavings)
		if err != nil {
			logger.Fatalf("record objective: %v", err)
		}
	}

	// Output
	if *outputJSON {
		data, _ := json.MarshalIndent(out.Aggregate, "", "  ")
		fmt.Println(string(data))
		return
	}
	agg := out.Aggregate
	fmt.Printf("episodes:           %d\n", agg.Episodes)
	fmt.Printf("mean agent IS:      %.4f\n", agg.MeanAgentShortfall)
	fmt.Printf("mean TWAP IS:       %.4f\n", agg.MeanTWAPShortfall)
	fmt.Printf("mean savings:       %.4f (%.2f bps)\n", agg.MeanSavings, agg.MeanSavingsBps)
	fmt.Printf("win rate:           %.2f%%\n", agg.WinRate*100)
	fmt.Printf("information ratio:  %.4f\n", agg.InformationRatio)
	fmt.Printf("savings VaR (95%%):  %.4f\n", agg.SavingsVaR95)
}
