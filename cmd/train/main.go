package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-exec-lab/internal/agent"
	"order-exec-lab/internal/config"
	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/evaluation"
	"order-exec-lab/internal/idhash"
	"order-exec-lab/internal/logging"
	"order-exec-lab/internal/monitor"
	"order-exec-lab/internal/observability"
	"order-exec-lab/internal/replay"
	"order-exec-lab/internal/simulation"
	"order-exec-lab/internal/storage"
	chstore "order-exec-lab/internal/storage/clickhouse"
	"order-exec-lab/internal/storage/memory"
	"order-exec-lab/internal/storage/migrations"
	pgstore "order-exec-lab/internal/storage/postgres"
	"order-exec-lab/internal/training"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config (defaults to built-in config)")
	episodes := flag.Int("episodes", 0, "Override number of training episodes")
	seed := flag.Int64("seed", 0, "Override simulation seed")
	logLevel := flag.String("log-level", "", "Override log level (debug, info, warn, error)")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

	// Observability
	metricsAddr := flag.String("metrics-addr", "", "Address for the Prometheus /metrics endpoint")
	monitorAddr := flag.String("monitor-addr", "", "Address for the live WebSocket scalar feed")

	// Output
	evaluate := flag.Bool("evaluate", true, "Evaluate the trained policy and record the objective")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[train] ", log.LstdFlags)

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
		cfg.RL.Episodes = *episodes
	}
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}
	if *logLevel != "" {
		cfg.App.LogLevel = *logLevel
	}
	if *metricsAddr != "" {
		cfg.App.MetricsAddr = *metricsAddr
	}
	if *monitorAddr != "" {
		cfg.App.MonitorAddr = *monitorAddr
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	zlog := logging.New(cfg.App.LogLevel)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Create stores
	var runStore storage.TrainingRunStore = memory.NewTrainingRunStore()
	var resultStore storage.EpisodeResultStore = memory.NewEpisodeResultStore()
	var checkpointStore storage.CheckpointStore = memory.NewCheckpointStore()
	var scalarStore storage.ScalarStore = memory.NewScalarStore()

	if !*useMemory {
		if *postgresDSN == "" {
			*postgresDSN = cfg.Storage.PostgresDSN
		}
		if *clickhouseDSN == "" {
			*clickhouseDSN = cfg.Storage.ClickhouseDSN
		}
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required when not using --use-memory (runs, results, checkpoints)")
		}

		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("run postgres migrations: %v", err)
		}

		runStore = pgstore.NewTrainingRunStore(pool)
		resultStore = pgstore.NewEpisodeResultStore(pool)
		checkpointStore = pgstore.NewCheckpointStore(pool)

		if *clickhouseDSN != "" {
			conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
			if err != nil {
				logger.Fatalf("run clickhouse migrations: %v", err)
			}
			defer conn.Close()
			scalarStore = chstore.NewScalarStore(conn)
		}
	}

	// Observability surfaces
	metrics := observability.NewMetrics("")
	if cfg.App.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			if err := http.ListenAndServe(cfg.App.MetricsAddr, mux); err != nil {
				zlog.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	hub := monitor.NewHub(zlog)
	defer hub.Close()
	if cfg.App.MonitorAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/ws", hub)
			if err := http.ListenAndServe(cfg.App.MonitorAddr, mux); err != nil {
				zlog.Warn().Err(err).Msg("monitor server stopped")
			}
		}()
	}

	// Build the training stack
	params := cfg.SimulationParams()
	hyper := cfg.Hyperparams()

	env, err := simulation.NewEnvironment(params)
	if err != nil {
		logger.Fatalf("create environment: %v", err)
	}

	initRng := rand.New(rand.NewSource(params.Seed))
	ag, err := agent.New(initRng, hyper, domain.ObservationDim, env.NumActions())
	if err != nil {
		logger.Fatalf("create agent: %v", err)
	}

	buf, err := replay.New(hyper.MemorySize)
	if err != nil {
		logger.Fatalf("create replay buffer: %v", err)
	}

	storeRec := training.NewStoreRecorder(scalarStore)
	recorder := training.MultiRecorder{
		training.LogRecorder{Log: zlog},
		storeRec,
		metrics,
		hub,
	}

	runID := idhash.ComputeRunID(params, hyper, time.Now().UnixNano())
	run := &domain.TrainingRun{
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Status:    domain.RunStatusRunning,
		Params:    params,
		Hyper:     hyper,
	}
	if err := runStore.Insert(ctx, run); err != nil {
		logger.Fatalf("record training run: %v", err)
	}

	loop, err := training.NewLoop(env, ag, buf, rand.New(rand.NewSource(params.Seed+1)), training.Config{
		RunID:    runID,
		Hyper:    hyper,
		Seed:     params.Seed,
		Recorder: recorder,
		Logger:   zlog,
	})
	if err != nil {
		logger.Fatalf("create training loop: %v", err)
	}

	logger.Printf("Training run %s: %d episodes, horizon %d, %d actions",
		runID, hyper.Episodes, env.Horizon(), env.NumActions())

	res, err := loop.Run(ctx)
	if err != nil {
		logger.Fatalf("training failed after %d episodes: %v", res.EpisodesRun, err)
	}

	// Persist scalars and checkpoints
	if err := storeRec.Flush(context.Background()); err != nil {
		zlog.Warn().Err(err).Msg("flush training scalars")
	}
	blobs, err := ag.Checkpoint()
	if err != nil {
		logger.Fatalf("snapshot networks: %v", err)
	}
	for component, blob := range blobs {
		err := checkpointStore.Put(context.Background(), &domain.Checkpoint{
			RunID:     runID,
			Component: component,
			Blob:      blob,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			logger.Fatalf("store %s checkpoint: %v", component, err)
		}
	}

	// Evaluate to produce the run objective
	objective := 0.0
	if *evaluate {
		ev, err := evaluation.New(env, ag, evaluation.Config{
			RunID:    runID,
			Episodes: cfg.Evaluation.Episodes,
			Seed:     cfg.Evaluation.Seed,
			Logger:   zlog,
		})
		if err != nil {
			logger.Fatalf("create evaluator: %v", err)
		}
		out, err := ev.Run(ctx)
		if err != nil {
			logger.Fatalf("evaluate: %v", err)
		}
		if err := resultStore.InsertBulk(context.Background(), out.Results); err != nil {
			zlog.Warn().Err(err).Msg("persist evaluation results")
		}
		metrics.RecordEvaluation(out.Aggregate)
		objective = out.Aggregate.MeanSavings

		logger.Printf("Evaluation: mean savings %.4f (%.2f bps), win rate %.2f%%, IR %.3f",
			out.Aggregate.MeanSavings, out.Aggregate.MeanSavingsBps,
			out.Aggregate.WinRate*100, out.Aggregate.InformationRatio)
	}

	status := domain.RunStatusCompleted
	if err := runStore.UpdateOutcome(context.Background(), runID, status, res.EpisodesRun, objective); err != nil {
		logger.Fatalf("record outcome: %v", err)
	}
	metrics.TrainingRunsTotal.WithLabelValues(status).Inc()
	metrics.LastSuccessfulRun.Set(float64(time.Now().Unix()))

	fmt.Printf("run_id: %s\nepisodes: %d\nfinal_epsilon: %.4f\nobjective: %.4f\n",
		runID, res.EpisodesRun, res.FinalEpsilon, objective)
}
