// Command main seeds the database with development data.
package main

import (
	"flag"
	"log"

	"corkboard/internal/config"
	"corkboard/internal/database"
	"corkboard/internal/seed"
)

func main() {
	numPosts := flag.Int("posts", 200, "number of posts to create")
	clean := flag.Bool("clean", false, "delete existing data first")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.Seed(db, seed.Options{
		NumPosts:      *numPosts,
		CellPrecision: cfg.CellPrecision,
		ShouldClean:   *clean,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
