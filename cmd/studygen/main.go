package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alexanderramin/studygen/internal/access"
	"github.com/alexanderramin/studygen/internal/api"
	"github.com/alexanderramin/studygen/internal/cli"
	"github.com/alexanderramin/studygen/internal/db"
	"github.com/alexanderramin/studygen/internal/gateway"
	"github.com/alexanderramin/studygen/internal/logger"
	"github.com/alexanderramin/studygen/internal/repository"
	"github.com/alexanderramin/studygen/internal/service"
	"github.com/alexanderramin/studygen/internal/session"
	"github.com/alexanderramin/studygen/internal/workflow"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load() // .env is optional

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Data directory: env var or default ~/.studygen
	dataDir := os.Getenv("STUDYGEN_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("finding home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".studygen")
	}
	dbPath := os.Getenv("STUDYGEN_DB")
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "studygen.db")
	}

	log, logCloser := logger.Open(logger.LoadConfig(dataDir))
	defer logCloser.Close()

	// Open database
	database, err := db.OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// The session cookie survives between invocations.
	jar, err := gateway.NewJar(repository.NewSQLiteCookieRepo(database), &log)
	if err != nil {
		return fmt.Errorf("creating cookie jar: %w", err)
	}
	if err := jar.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("could not restore saved session")
	}

	// Wire the gateway and everything that talks through it
	gwCfg := gateway.LoadConfig()
	var observer gateway.Observer = gateway.NoopObserver{}
	if gwCfg.LogCalls {
		observer = gateway.NewLogObserver(log)
	}
	gw, err := gateway.New(gwCfg, jar, observer)
	if err != nil {
		return err
	}
	client := api.NewClient(gw)
	store := session.NewStore(client, gw, log)
	gw.OnUnauthorized(store.Invalidate)
	gate := access.NewGate(store)

	uow := db.NewSQLiteUnitOfWork(database)
	results := service.NewResultsService(
		client,
		gate,
		repository.NewSQLiteResultCacheRepo(database),
		uow,
		service.NewLogUseCaseObserver(log),
	)

	app := &cli.App{
		Sessions: store,
		Gate:     gate,
		Backend:  client,
		Results:  results,
		Workflow: workflow.LoadConfig(),
		Logger:   log,
	}

	// Detect interactive terminal for prompts and the shell.
	app.IsInteractive = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	log.Debug().Str("api", gw.BaseURL()).Str("db", dbPath).Msg("starting")

	// Execute root command
	return cli.NewRootCmd(app).ExecuteContext(ctx)
}
