package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coursemarket_echo/internal/bootstrap"
	"coursemarket_echo/internal/config"
	"coursemarket_echo/internal/tasks"
)

const tickInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := bootstrap.OpenDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	engine, err := bootstrap.NewEngine(cfg, db, log.Default())
	if err != nil {
		log.Fatalf("Failed to initialize reconciliation engine: %v", err)
	}
	defer engine.Close()

	// Initialize Task Registry
	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, tasks.Deps{
		DB:         db,
		Reconciler: engine.Reconciler,
		Notifier:   engine.Notifier,
		WebhookLog: engine.WebhookLog,
	})
	runner := tasks.NewRunner(db, registry, log.Default())

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down worker...")
		cancel()
	}()

	if err := tasks.SeedRecurring(ctx, engine.Scheduler, time.Now()); err != nil {
		log.Fatalf("Failed to seed recurring tasks: %v", err)
	}

	log.Printf("Worker started, checking for due tasks every %s", tickInterval)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	processScheduledTasks(ctx, runner)
	for {
		select {
		case <-ticker.C:
			processScheduledTasks(ctx, runner)
		case <-ctx.Done():
			return
		}
	}
}

func processScheduledTasks(ctx context.Context, runner *tasks.Runner) {
	ran, err := runner.RunDue(ctx)
	if err != nil {
		log.Printf("Error running scheduled tasks: %v", err)
		return
	}
	if ran > 0 {
		log.Printf("Ran %d scheduled tasks.", ran)
	}
}
