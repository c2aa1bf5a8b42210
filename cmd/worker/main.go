package main

import (
	"context"
	"log"

	"questline/internal/app/bootstrap"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Drain the reward sync outbox into the external ledger.
func main() {
	log.Println("questline worker starting")
	app, err := bootstrap.BuildWorker()
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("questline worker stopped with error: %v", err)
	}
}
