package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/justsurfingit/job-o-matic/internal/app"
	"github.com/justsurfingit/job-o-matic/internal/auth"
	"github.com/justsurfingit/job-o-matic/internal/config"
	"github.com/justsurfingit/job-o-matic/internal/handlers"
	"github.com/justsurfingit/job-o-matic/internal/services"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func main() {
	// 1. Load Environment Variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database + core services
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("Startup failed: ", err)
	}
	defer a.Close()

	// 3. Gmail outcome watcher (optional)
	if cfg.GmailWatcher {
		startWatcher(ctx, a)
	}

	// 4. Handlers + routes
	router := handlers.NewRouter(handlers.NewJobHandler(a.LLM, a.Jobs), handlers.NewBulkHandler(a.Bulk))

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Printf("🚀 Server starting on port %s...", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start: ", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Shutdown: %v", err)
	}
}

func startWatcher(ctx context.Context, a *app.App) {
	if a.LLM == nil {
		log.Println("⚠️  Gmail Watcher needs GEMINI_API_KEY. Skipping.")
		return
	}
	log.Println("Initializing Gmail Client...")
	httpClient, err := auth.GmailClient(ctx, a.Config.GmailCredentials, a.Config.GmailToken, os.Stdin, os.Stdout)
	if err != nil {
		log.Printf("⚠️  Gmail auth failed: %v", err)
		return
	}
	gmailService, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		log.Printf("⚠️  Failed to create Gmail Service: %v", err)
		return
	}
	log.Println("✅ Gmail Service connected successfully.")

	watcher := services.NewEmailService(a.DB, a.LLM, gmailService, a.Matcher, a.Jobs)
	watcher.Interval = a.Config.GmailInterval
	watcher.StartWatcher(ctx)
}
