package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quiz-contest-engine/internal/app"
	"quiz-contest-engine/internal/config"
	"quiz-contest-engine/internal/domain"
	"quiz-contest-engine/internal/infra/memory"
	pginfra "quiz-contest-engine/internal/infra/postgres"
	redisinfra "quiz-contest-engine/internal/infra/redis"
	transport "quiz-contest-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the contest server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pgPool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pgPool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var poolLoader memory.PoolLoader = memory.NewStaticPoolLoader(samplePools())
	var questionSource app.QuestionSource = memory.NewStaticQuestionSource(sampleQuestionSets())
	if pgPool != nil {
		poolLoader = pginfra.NewPoolLoader(pgPool)
		questionSource = pginfra.NewQuestionLoader(pgPool)
	}

	poolTTL := config.TTLDuration(cfg.Contest.PoolTTL, 10*time.Minute)
	questionTTL := config.TTLDuration(cfg.Contest.QuestionTTL, 10*time.Minute)

	var pools app.PoolRepository
	if redisClient != nil {
		pools = redisinfra.NewPoolRepository(redisClient, poolLoader, poolTTL)
	} else {
		pools = memory.NewPoolRepository(poolLoader, poolTTL)
	}

	if redisClient != nil {
		if loader, ok := questionSource.(redisinfra.QuestionLoader); ok {
			questionSource = redisinfra.NewQuestionRepository(redisClient, loader, questionTTL)
		}
	}

	var matches app.MatchRepository
	if redisClient != nil {
		matches = redisinfra.NewMatchStore(redisClient, redisTTL)
	} else {
		matches = memory.NewMatchStore()
	}

	resultTTL := config.TTLDuration(cfg.Contest.ResultTTL, 24*time.Hour)
	var results app.ResultStore
	switch {
	case pgPool != nil:
		results = pginfra.NewResultWriter(pgPool)
	case redisClient != nil:
		results = redisinfra.NewResultStore(redisClient, resultTTL)
	default:
		results = memory.NewResultStore()
	}

	service := app.NewMatchService(pools, questionSource, matches, results, matchDefaults(cfg))
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting contest engine")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func matchDefaults(cfg config.Config) domain.MatchConfig {
	defaults := domain.MatchConfig{
		QuestionCount:   10,
		TimePerQuestion: 10 * time.Second,
		ReviewDelay:     2 * time.Second,
		BasePoints:      100,
		BonusPerSecond:  10,
	}
	if cfg.Match.QuestionCount > 0 {
		defaults.QuestionCount = cfg.Match.QuestionCount
	}
	defaults.TimePerQuestion = config.TTLDuration(cfg.Match.TimePerQuestion, defaults.TimePerQuestion)
	defaults.ReviewDelay = config.TTLDuration(cfg.Match.ReviewDelay, defaults.ReviewDelay)
	if cfg.Match.BasePoints > 0 {
		defaults.BasePoints = cfg.Match.BasePoints
	}
	if cfg.Match.BonusPerSecond > 0 {
		defaults.BonusPerSecond = cfg.Match.BonusPerSecond
	}
	return defaults
}

// samplePools provides a minimal local setup; swap in the Postgres loaders for production.
func samplePools() map[string]domain.ContestPool {
	return map[string]domain.ContestPool{
		"pool-1": {
			ID:           "pool-1",
			QuestionSet:  "set-1",
			EntryFee:     25,
			PlayerCount:  2,
			NetPrizePool: 900,
			Rewards:      []int64{450, 270},
			WinnerCount:  2,
		},
	}
}

func sampleQuestionSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"set-1": {
			ID: "set-1",
			Questions: []domain.Question{
				{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectIndex: 1, Explanation: "Basic addition."},
				{ID: "q2", Prompt: "Capital of France?", Options: []string{"Lyon", "Nice", "Paris", "Lille"}, CorrectIndex: 2},
				{ID: "q3", Prompt: "Largest ocean?", Options: []string{"Atlantic", "Pacific", "Indian", "Arctic"}, CorrectIndex: 1},
				{ID: "q4", Prompt: "7 x 8?", Options: []string{"54", "56", "58", "62"}, CorrectIndex: 1},
				{ID: "q5", Prompt: "H2O is?", Options: []string{"Hydrogen", "Oxygen", "Water", "Helium"}, CorrectIndex: 2},
				{ID: "q6", Prompt: "Smallest prime?", Options: []string{"0", "1", "2", "3"}, CorrectIndex: 2},
				{ID: "q7", Prompt: "Continents on Earth?", Options: []string{"5", "6", "7", "8"}, CorrectIndex: 2},
				{ID: "q8", Prompt: "Speed of light (km/s)?", Options: []string{"300", "3000", "30000", "300000"}, CorrectIndex: 3},
				{ID: "q9", Prompt: "Author of Hamlet?", Options: []string{"Dickens", "Shakespeare", "Tolstoy", "Homer"}, CorrectIndex: 1},
				{ID: "q10", Prompt: "Binary of 5?", Options: []string{"100", "101", "110", "111"}, CorrectIndex: 1},
			},
		},
	}
}
