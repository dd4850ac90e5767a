package main

import (
	"log"

	"site-research-be/internal/config"
	"site-research-be/internal/model"
	"site-research-be/pkg/database"
)

func main() {
	cfg := config.Load()

	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, true)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Running migrations...")
	if err := database.Migrate(db, &model.DocumentChunk{}, &model.Checkpoint{}); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migration completed: document_chunks, agent_checkpoints")
}
