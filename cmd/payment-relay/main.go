package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aq2208/payment-relay/cmd/payment-relay/app"
	"github.com/aq2208/payment-relay/configs"
	"github.com/gin-gonic/gin"
)

func main() {
	env := os.Getenv("APP_ENV") // dev | staging | prod
	if env == "" {
		env = "dev"
	}
	if env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg, err := configs.Load("configs", env)
	if err != nil {
		log.Fatal(err)
	}

	a, cleanup, err := app.InitWithConfig(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Logger.Info("payment-relay listening", "env", env, "addr", cfg.HTTPAddr())
	if err := a.Run(ctx, cfg.HTTP.ShutdownTimeout); err != nil {
		a.Logger.Error("server stopped", "error", err)
		stop()
		cleanup()
		os.Exit(1)
	}
}
