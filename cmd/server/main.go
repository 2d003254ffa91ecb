package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/coleapp/session-service/accounts"
	"github.com/coleapp/session-service/internal/config"
	"github.com/coleapp/session-service/server"
	"github.com/coleapp/session-service/storage/sqlite"
	tenantrepofakes "github.com/coleapp/session-service/tenants/repofakes"
	"github.com/coleapp/session-service/token"
	fakeuserrepo "github.com/coleapp/session-service/users/repofake"
	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logger := newLogger(c.GetEnv())
	displayAppname(c.GetAppName())

	repos, cleanup, err := buildRepos(c, logger)
	if err != nil {
		return fmt.Errorf("buildRepos: %w", err)
	}
	defer cleanup()

	secret := c.GetJWTSecret()
	if secret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	tokenManager, err := token.New(secret, token.WithExpiry(c.GetJWTExpiresIn()))
	if err != nil {
		return fmt.Errorf("token.New: %w", err)
	}

	service, err := accounts.NewService(repos, tokenManager,
		accounts.WithMultiTenant(c.GetMultiTenantEnabled()),
		accounts.WithDefaultTenantID(c.GetDefaultTenantID()),
	)
	if err != nil {
		return fmt.Errorf("accounts.NewService: %w", err)
	}

	srv, err := server.New(c, repos, service, logger)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	if _, err := srv.InitialiseSystem(context.Background()); err != nil {
		return fmt.Errorf("InitialiseSystem: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer, logger)
	waitForStopSignal()
	return shutdown(httpServer)
}

// buildRepos selects sqlite-backed repositories when DATABASE_URL is set
// and in-memory ones otherwise (useful for local development and tests).
func buildRepos(c config.Config, logger zerolog.Logger) (accounts.Repos, func(), error) {
	databaseURL := c.GetDatabaseURL()
	if databaseURL == "" {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory repositories")
		return accounts.Repos{
			Users:   fakeuserrepo.NewFakeUserRepo(),
			Tenants: tenantrepofakes.NewFakeTenantRepo(),
		}, func() {}, nil
	}

	db, err := sqlite.Open(databaseURL)
	if err != nil {
		return accounts.Repos{}, nil, err
	}
	logger.Info().Str("database", databaseURL).Msg("connected to database")
	return accounts.Repos{
		Users:   sqlite.NewUserRepo(db),
		Tenants: sqlite.NewTenantRepo(db),
	}, func() { _ = db.Close() }, nil
}

func newLogger(env string) zerolog.Logger {
	if env == "DEV" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func listenAndServe(server *http.Server, logger zerolog.Logger) {
	logger.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
