package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-exec-lab/internal/agent"
	"order-exec-lab/internal/config"
	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/evaluation"
	"order-exec-lab/internal/logging"
	"order-exec-lab/internal/replay"
	"order-exec-lab/internal/simulation"
	"order-exec-lab/internal/storage"
	"order-exec-lab/internal/storage/memory"
	"order-exec-lab/internal/storage/migrations"
	pgstore "order-exec-lab/internal/storage/postgres"
	"order-exec-lab/internal/training"
	"order-exec-lab/internal/tuning"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config (defaults to built-in config)")
	trials := flag.Int("trials", 0, "Override number of search trials")
	bestPath := flag.String("best-path", "", "Override output path for best parameters YAML")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for trial bookkeeping")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[tune] ", log.LstdFlags)

	// Load config
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatalf("load config: %v", err)
		}
	}
	if *trials > 0 {
		cfg.Tuning.Trials = *trials
	}
	if *bestPath != "" {
		cfg.Tuning.BestPath = *bestPath
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
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

	// Create stores
	var runStore storage.TrainingRunStore = memory.NewTrainingRunStore()
	if !*useMemory {
		if *postgresDSN == "" {
			*postgresDSN = cfg.Storage.PostgresDSN
		}
		if *postgresDSN != "" {
			pool, err := pgstore.NewPool(ctx, *postgresDSN)
			if err != nil {
				logger.Fatalf("connect to postgres: %v", err)
			}
			defer pool.Close()
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				logger.Fatalf("run postgres migrations: %v", err)
			}
			runStore = pgstore.NewTrainingRunStore(pool)
		}
	}

	params := cfg.SimulationParams()

	// runTrial trains one candidate and reports its evaluation objective.
	runTrial := func(ctx context.Context, trialID string, h domain.Hyperparams, report tuning.ReportFunc) (float64, bool, error) {
		env, err := simulation.NewEnvironment(params)
		if err != nil {
			return 0, false, err
		}
		ag, err := agent.New(rand.New(rand.NewSource(params.Seed)), h, domain.ObservationDim, env.NumActions())
		if err != nil {
			return 0, false, err
		}
		buf, err := replay.New(h.MemorySize)
		if err != nil {
			return 0, false, err
		}

		if err := runStore.Insert(ctx, &domain.TrainingRun{
			RunID:     trialID,
			CreatedAt: time.Now().UTC(),
			Status:    domain.RunStatusRunning,
			Params:    params,
			Hyper:     h,
		}); err != nil {
			return 0, false, err
		}

		loop, err := training.NewLoop(env, ag, buf, rand.New(rand.NewSource(params.Seed+1)), training.Config{
			RunID:      trialID,
			Hyper:      h,
			Seed:       params.Seed,
			PruneEvery: cfg.Tuning.ReportEvery,
			PruneHook:  training.PruneHook(report),
			Logger:     zlog,
		})
		if err != nil {
			return 0, false, err
		}

		res, err := loop.Run(ctx)
		if err != nil {
			return 0, false, err
		}
		if res.Pruned {
			if err := runStore.UpdateOutcome(ctx, trialID, domain.RunStatusPruned, res.EpisodesRun, 0); err != nil {
				return 0, false, err
			}
			return 0, true, nil
		}

		ev, err := evaluation.New(env, ag, evaluation.Config{
			RunID:    trialID,
			Episodes: cfg.Evaluation.Episodes,
			Seed:     cfg.Evaluation.Seed,
			Logger:   zlog,
		})
		if err != nil {
			return 0, false, err
		}
		out, err := ev.Run(ctx)
		if err != nil {
			return 0, false, err
		}

		objective := out.Aggregate.MeanSavings
		if err := runStore.UpdateOutcome(ctx, trialID, domain.RunStatusCompleted, res.EpisodesRun, objective); err != nil {
			return 0, false, err
		}
		return objective, false, nil
	}

	logger.Printf("Study %s: %d trials (%d startup), objective = mean savings over %d evaluation episodes",
		cfg.Tuning.StudyName, cfg.Tuning.Trials, cfg.Tuning.StartupTrials, cfg.Evaluation.Episodes)

	res, err := tuning.Search(ctx, tuning.SearchConfig{
		StudyName:     cfg.Tuning.StudyName,
		Trials:        cfg.Tuning.Trials,
		StartupTrials: cfg.Tuning.StartupTrials,
		Seed:          cfg.Tuning.Seed,
		Space:         cfg.Tuning.Space,
		Base:          cfg.Hyperparams(),
		Logger:        zlog,
	}, runTrial)
	if err != nil {
		logger.Fatalf("search failed: %v", err)
	}

	if err := tuning.SaveBest(cfg.Tuning.BestPath, cfg.Tuning.StudyName, res.Best); err != nil {
		logger.Fatalf("save best params: %v", err)
	}

	fmt.Printf("best trial: %s (#%d)\nobjective: %.4f\nlr: %.2e\ngamma: %.4f\nbatch_size: %d\nsaved: %s\n",
		res.Best.ID, res.Best.Number, res.Best.Objective,
		res.Best.Hyper.LR, res.Best.Hyper.Gamma, res.Best.Hyper.BatchSize,
		cfg.Tuning.BestPath)
}
