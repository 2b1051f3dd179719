package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/joseph-ayodele/doc-extractor/internal/app"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	repo "github.com/joseph-ayodele/doc-extractor/internal/repository"
)

func main() {
	migrate := flag.Bool("migrate", false, "create or update the extraction tables after the health check")
	timeout := flag.Duration("timeout", time.Second, "health check timeout")
	flag.Parse()

	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := repo.Open(ctx, app.DatabaseConfig(cfg), logger)
	if err != nil {
		log.Fatalf("opening DB: %v", err)
	}
	defer db.Close(logger)

	if err := db.HealthCheck(ctx, *timeout); err != nil {
		log.Fatalf("DB health: FAIL (%v)", err)
	}
	log.Printf("DB health: OK (dialect %s)", db.Dialect())

	if !*migrate {
		return
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("migrate: OK")
}
