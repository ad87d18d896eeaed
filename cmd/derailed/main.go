package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gitlab.com/derailed/derailed/internal/auth"
	"gitlab.com/derailed/derailed/internal/db"
	"gitlab.com/derailed/derailed/internal/events"
	"gitlab.com/derailed/derailed/internal/jobs"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/observability"
	"gitlab.com/derailed/derailed/internal/ratelimit"
	"gitlab.com/derailed/derailed/internal/routes"
	"gitlab.com/derailed/derailed/internal/snowflake"
	"golang.org/x/sync/errgroup"
)

const usage = `Usage:
	- start
	- migrate [up/down/drop]
`

func main() {
	if len(os.Args) == 1 {
		fmt.Print(usage, "\n")
		return
	}
	envConfig, err := models.ReadEnvConfig()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	switch os.Args[1] {
	case "start":
		server := DerailedServer{EnvConfig: envConfig}
		server.Setup()
		if err := server.Run(); err != nil {
			server.logger.Fatal().Err(err).Msg("Server stopped")
		}
	case "migrate":
		if len(os.Args) < 3 {
			fmt.Print(usage, "\n")
			return
		}
		switch os.Args[2] {
		case "up":
			err = db.MigrateUp(envConfig.DatabaseURL)
		case "down":
			err = db.MigrateDown(envConfig.DatabaseURL)
		case "drop":
			err = db.Drop(envConfig.DatabaseURL)
		default:
			fmt.Print(usage, "\n")
			return
		}
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		fmt.Println("Done")
	default:
		fmt.Print(usage, "\n")
	}
}

type DerailedServer struct {
	models.EnvConfig
	addr       string
	logger     zerolog.Logger
	ids        *snowflake.Generator
	redis      *redis.Client
	redisOpts  asynq.RedisConnOpt
	metrics    *observability.Metrics
	jobs       *jobs.Client
	worker     *jobs.Worker
	database   *db.SharedDB
	router     chi.Router
	httpServer *http.Server
}

func (server *DerailedServer) setupLogger() {
	var writer io.Writer
	if server.Debug {
		writer = zerolog.ConsoleWriter{Out: os.Stdout}
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		writer = os.Stdout
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	server.logger = zerolog.New(writer).With().Timestamp().Logger()
}
func (server *DerailedServer) setupIDs() {
	server.ids = snowflake.NewGenerator(server.Epoch, server.WorkerID, os.Getpid())
	server.logger.Info().
		Int("worker_id", server.WorkerID).
		Int("process_id", os.Getpid()&31).
		Msg("Snowflake generator ready")
}
func (server *DerailedServer) setupRedis() {
	opts, err := redis.ParseURL(server.RedisURL)
	if err != nil {
		server.logger.Fatal().Err(err).Msg("Parsing redis url")
	}
	server.redis = redis.NewClient(opts)
	server.redisOpts, err = asynq.ParseRedisURI(server.RedisURL)
	if err != nil {
		server.logger.Fatal().Err(err).Msg("Parsing redis url for jobs")
	}
	server.jobs = jobs.NewClient(server.redisOpts)
}
func (server *DerailedServer) setupDB() {
	err := db.MigrateUp(server.DatabaseURL)
	if err != nil {
		server.logger.Fatal().Err(err).Send()
	}
	publisher := events.NewRedisPublisher(server.redis, server.logger, server.metrics)
	database, err := db.Connect(context.Background(), &server.EnvConfig, server.ids,
		db.WithNotificationService(publisher),
		db.WithPurger(server.jobs),
	)
	if err != nil {
		server.logger.Fatal().AnErr("Connecting to db", err).Send()
	}
	server.database = database
}
func (server *DerailedServer) setupWorker() {
	purge := jobs.NewPurgeHandler(server.database, server.logger, server.metrics)
	server.worker = jobs.NewWorker(server.redisOpts, server.logger, purge)
}
func (server *DerailedServer) setupRouter() {
	tokens, err := auth.NewManager(server.TokenSecret, server.TokenTTL, server.ids)
	if err != nil {
		server.logger.Fatal().Err(err).Send()
	}
	server.router = routes.NewRouter(routes.Deps{
		EnvConfig: &server.EnvConfig,
		DB:        server.database,
		Tokens:    tokens,
		Limiter:   ratelimit.New(server.redis),
		Metrics:   server.metrics,
		Redis:     server.redis,
		Logger:    server.logger,
	})
}
func (server *DerailedServer) setupHttpServer() {
	server.addr = ":" + server.Port
	server.httpServer = &http.Server{
		Addr:              server.addr,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       1 * time.Minute,
	}
}
func (server *DerailedServer) Setup() {
	server.setupLogger()
	server.metrics = observability.NewMetrics()
	server.setupIDs()
	server.setupRedis()
	server.setupDB()
	server.setupWorker()
	server.setupRouter()
	server.setupHttpServer()
}
func (server *DerailedServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.httpServer.Shutdown(ctx); err != nil {
		server.logger.Error().
			Err(err).
			Msg("Error shutting down")
	}
	server.jobs.Close()
	server.redis.Close()
	server.database.Close()
}

// Run serves HTTP and processes jobs until interrupted.
func (server *DerailedServer) Run() error {
	server.logger.Info().Str("server_address", server.addr).Msg("Server is starting")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := server.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return server.worker.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		stop() // Stop listening for signals
		server.logger.Info().Msg("Shutting down gracefully")
		server.Shutdown()
		return nil
	})
	server.logger.Info().Msg("Ready")
	return g.Wait()
}
