package main

import (
	"context"
	"log"
	"time"

	"message-board/internal/auth"
	"message-board/internal/message"
	"message-board/internal/server"
	"message-board/internal/storage"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func newLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func main() {
	// .env is optional, real environment wins
	_ = godotenv.Load()

	cfg := server.EnvConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Cannot parse env config: %v", err)
	}

	logger, err := newLogger(cfg.Production())
	if err != nil {
		log.Fatalf("Cannot create logger: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Infof("Application is starting in %s mode", cfg.Env)

	dbCfg := storage.Config{}
	if err := env.Parse(&dbCfg); err != nil {
		sugar.Fatalf("Cannot parse database config: %v", err)
	}

	authCfg := auth.Config{}
	if err := env.Parse(&authCfg); err != nil {
		sugar.Fatalf("Cannot parse auth config: %v", err)
	}
	if err := authCfg.Validate(); err != nil {
		sugar.Fatalf("Invalid auth config: %v", err)
	}

	if dbCfg.Migrate {
		sugar.Info("Applying database migrations")
		if err := storage.Migrate(dbCfg); err != nil {
			sugar.Fatalf("Cannot migrate database: %v", err)
		}
	}

	store, err := storage.New(context.Background(), sugar, dbCfg, storage.ConnectionTimeout(30*time.Second))
	if err != nil {
		sugar.Fatalf("Cannot create Store instance: %v", err)
	}

	serverOpts := []server.Option{
		server.WithEnvConfig(cfg),
		server.ReadTimeout(5 * time.Second),
		server.WriteTimeout(15 * time.Second),
		server.RequestTimeout(10 * time.Second),
		server.HealthCheck(store.Ping),
		server.RegisterAfterShutdown(func() {
			sugar.Info("Closing store")
			store.Close()
			sugar.Info("Store is closed")
		}),
	}

	srv, err := server.NewServer(
		sugar,
		message.NewService(sugar, store),
		auth.NewService(sugar, store, authCfg),
		serverOpts...,
	)
	if err != nil {
		sugar.Fatalf("Cannot create Server instance: %v", err)
	}

	if err := srv.Start(); err != nil {
		sugar.Fatalf("Cannot start http srv: %v", err)
	}
}
