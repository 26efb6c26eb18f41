package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/justsurfingit/job-o-matic/internal/app"
	"github.com/justsurfingit/job-o-matic/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("Startup failed: ", err)
	}
	defer a.Close()

	root := RootCmd(a)
	if err := root.ExecuteContext(ctx); err != nil {
		// cobra already printed the error
		stop()
		a.Close()
		os.Exit(1)
	}
}
