package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/cardgame/internal/httpserver"
	"github.com/robalobadob/cardgame/internal/players"
	"github.com/robalobadob/cardgame/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	db, err := openDB(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	defer db.Close()
	if err := players.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	gw := players.NewGateway(players.NewStore(db), players.WithMaxTries(cfg.SaveRetries))
	defer gw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sessions := store.NewMemoryStore()
	go sessions.Janitor(ctx, cfg.SessionTTL, cfg.SessionSweep)

	srv := httpserver.New(cfg.HTTP(), sessions, gw)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info().Msg("shutting down")
		cancel()
		gw.Close()
		_ = db.Close()
		os.Exit(0)
	}()

	log.Info().Str("port", cfg.Port).Str("db", cfg.DBPath).
		Dur("session_ttl", cfg.SessionTTL).Msg("starting cardgame server")
	if err := srv.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
