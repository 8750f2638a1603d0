package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tazhate/tasksync/internal/api"
	"github.com/tazhate/tasksync/internal/bot"
	"github.com/tazhate/tasksync/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll providers on a schedule and serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return a.serve()
	},
}

func (a *app) serve() error {
	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.cfg.TelegramEnabled() {
		tgBot, err := bot.New(a.cfg.TelegramToken, a.cfg.TelegramChatID, a.tasks)
		if err != nil {
			return err
		}
		*a.sinks = append(*a.sinks, tgBot)

		go func() {
			if err := tgBot.Start(ctx); err != nil {
				log.Printf("Bot error: %v", err)
			}
		}()
	}

	server := &http.Server{
		Addr:    ":" + a.cfg.ServerPort,
		Handler: api.New(a.cfg.APIUsername, a.cfg.APIPassword, a.store, a.tasks, a.issues).Handler(),
	}
	go func() {
		log.Printf("Starting HTTP server on :%s", a.cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	sched := scheduler.New(a.cfg, a.tasks)
	schedErr := make(chan error, 1)
	go func() {
		schedErr <- sched.Start(ctx)
	}()

	log.Println("TaskSync started")

	// Wait for a signal, or for the scheduler to fail on a bad spec
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-sigCh:
	case runErr = <-schedErr:
		if runErr != nil {
			log.Printf("Scheduler error: %v", runErr)
		}
	}

	log.Println("Shutting down...")

	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	}

	log.Println("TaskSync stopped")
	return runErr
}
