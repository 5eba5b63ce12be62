package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hightechcross/internal/app"
	"hightechcross/internal/config"
	"hightechcross/internal/infra/memory"
	"hightechcross/internal/infra/postgres"
	infraredis "hightechcross/internal/infra/redis"
	transport "hightechcross/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// repositories is the storage behind the services, Postgres or in memory.
// Only Postgres is durable; in-memory ids restart at 1 with the process.
type repositories struct {
	crosses   app.CrossRepository
	tasks     app.TaskRepository
	hints     app.HintRepository
	answers   app.AnswerRepository
	users     app.UserRepository
	standings app.StandingsReader
	loader    memory.TaskLoader
	durable   bool
	close     func()
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg, nil)
	slog.SetDefault(logger)
	transport.SetLogger(logger)

	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repos.close()

	catalog, tokens, closeCaches := openCaches(cfg, repos, logger)
	defer closeCaches()

	opts := []app.Option{
		app.WithLogger(logger),
		app.WithCrossDuration(config.TTLDuration(cfg.Cross.Duration, app.DefaultCrossDuration)),
		app.WithScoring(app.Scoring{
			HintPenalty:        config.TTLDuration(cfg.Cross.HintPenalty, app.DefaultScoring.HintPenalty),
			WrongAnswerPenalty: config.TTLDuration(cfg.Cross.WrongAnswerPenalty, app.DefaultScoring.WrongAnswerPenalty),
		}),
		app.WithTokenTTL(config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour)),
	}
	services := transport.Services{
		Crosses: app.NewCrossService(repos.crosses, catalog, repos.standings, opts...),
		Hunt:    app.NewHuntService(repos.crosses, repos.tasks, catalog, repos.hints, repos.answers, opts...),
		Users:   app.NewUserService(repos.users, opts...),
		Auth:    app.NewAuthService(repos.users, tokens, cfg.Auth.JWTSecret, opts...),
	}

	if cfg.Auth.AdminUsername != "" && cfg.Auth.AdminPassword != "" {
		staff := true
		admin, created, err := services.Users.EnsureUser(ctx, app.UserInput{
			Username: &cfg.Auth.AdminUsername,
			Password: &cfg.Auth.AdminPassword,
			IsStaff:  &staff,
		})
		if err != nil {
			return err
		}
		if created {
			logger.Info("admin account created", slog.String("username", admin.Username))
		}
	}

	handler := transport.NewHandler(services, transport.RouterOptions{
		Version:        Version,
		BuildTime:      BuildTime,
		StreamInterval: config.TTLDuration(cfg.Results.StreamInterval, transport.DefaultStreamInterval),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr), slog.String("version", Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case err := <-serveErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openCaches picks the task catalog and token store. Task lists are cached in
// Redis only over durable storage: cached ids would outlive an in-memory store.
func openCaches(cfg config.Config, repos repositories, logger *slog.Logger) (app.TaskCatalog, app.TokenStore, func()) {
	cacheTTL := config.TTLDuration(cfg.Cross.TaskCacheTTL, 10*time.Minute)
	if cfg.Redis.Addr == "" {
		return memory.NewTaskCatalog(repos.loader, cacheTTL), memory.NewTokenStore(), func() {}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	logger.Info("using redis", slog.String("addr", cfg.Redis.Addr))
	var catalog app.TaskCatalog
	if repos.durable {
		catalog = infraredis.NewTaskCatalog(redisClient, repos.loader, cacheTTL)
	} else {
		logger.Warn("redis task cache disabled for in-memory storage")
		catalog = memory.NewTaskCatalog(repos.loader, cacheTTL)
	}
	return catalog, infraredis.NewTokenStore(redisClient), func() { redisClient.Close() }
}

// openRepositories migrates and connects to Postgres when it is configured and
// falls back to the in-memory store otherwise.
func openRepositories(ctx context.Context, cfg config.Config, logger *slog.Logger) (repositories, error) {
	if cfg.Postgres.URL == "" {
		logger.Warn("postgres not configured, state is kept in memory")
		store := memory.NewStore()
		return repositories{
			crosses:   store,
			tasks:     store,
			hints:     store,
			answers:   store,
			users:     store,
			standings: store,
			loader:    store,
			close:     func() {},
		}, nil
	}

	db := postgres.Open(cfg.Postgres.URL)
	if err := migrateDB(ctx, db, logger); err != nil {
		db.Close()
		return repositories{}, err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		db.Close()
		return repositories{}, err
	}
	store := postgres.NewStore(db)
	return repositories{
		crosses:   store,
		tasks:     store,
		hints:     store,
		answers:   store,
		users:     store,
		standings: postgres.NewStandingsReader(pool),
		loader:    store,
		durable:   true,
		close: func() {
			pool.Close()
			db.Close()
		},
	}, nil
}
