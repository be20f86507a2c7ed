package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dinner-planner/internal/app"
	"dinner-planner/internal/config"
	"dinner-planner/internal/telegram"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		log.Fatalf("Invalid bot config: %v", err)
	}

	ctx := context.Background()

	// 2. Initialize the app and restore the device session
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer application.Close()

	if user, err := application.RequireSession(ctx); err != nil {
		log.Printf("Warning: no backend session (%v). Run `dinner-planner login` on this host.", err)
	} else {
		log.Printf("Acting as %s <%s>", user.Name, user.Email)
	}

	wizards := telegram.NewWizardRepository(application.DB().SQL)
	if n, err := wizards.CleanupExpired(ctx, time.Now()); err != nil {
		log.Printf("Warning: failed to clean up expired wizards: %v", err)
	} else if n > 0 {
		log.Printf("Removed %d expired planning sessions", n)
	}

	// 3. Initialize Telegram Bot
	bot, err := telegram.NewBot(cfg, telegram.Deps{
		Backend:  application.Client,
		Importer: application.Importer,
		Metrics:  application.Metrics,
		Archive:  application.Archive,
		Wizards:  wizards,
		DataPath: application.DataPath(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize Telegram Bot: %v", err)
	}

	// 4. Start Server with Graceful Shutdown
	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		log.Printf("Telegram Bot Server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
