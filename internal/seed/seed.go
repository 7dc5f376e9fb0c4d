// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"

	"corkboard/internal/geo"
	"corkboard/internal/locality"
	"corkboard/internal/models"
)

// Options configuration for the seeder
type Options struct {
	NumPosts      int
	CellPrecision int
	ShouldClean   bool
}

// city anchors seeded posts to a real coordinate so cell and radius queries
// return plausible neighborhoods.
type city struct {
	name string
	lat  float64
	lng  float64
}

var cities = []city{
	{"San Francisco", 37.7749, -122.4194},
	{"Oakland", 37.8044, -122.2712},
	{"Berkeley", 37.8715, -122.2730},
	{"Portland", 45.5152, -122.6784},
	{"Austin", 30.2672, -97.7431},
	{"Chicago", 41.8781, -87.6298},
}

// Seed populates the database with test data
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Starting database seeding with %d posts...", opts.NumPosts)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: Could not clear all existing data, but continuing anyway...")
		}
	}

	gofakeit.Seed(time.Now().UnixNano())
	cells := geo.NewCellIndexer(opts.CellPrecision)

	created := 0
	for i := 0; i < opts.NumPosts; i++ {
		post, record := makePost(cells)
		if err := db.Create(post).Error; err != nil {
			return fmt.Errorf("failed to create post: %w", err)
		}
		record.PostID = post.ID
		if err := db.Create(record).Error; err != nil {
			return fmt.Errorf("failed to create moderation record: %w", err)
		}
		created++
	}

	log.Printf("Seeding complete: %d posts created", created)
	return nil
}

func makePost(cells *geo.CellIndexer) (*models.Post, *models.ModerationRecord) {
	home := cities[rand.Intn(len(cities))]

	// Jitter within roughly a couple of miles of the city center.
	lat := home.lat + (rand.Float64()-0.5)*0.05
	lng := home.lng + (rand.Float64()-0.5)*0.05

	cellID := cells.CellOf(lat, lng)
	slug := locality.Slugify(home.name)
	name := home.name

	content := gofakeit.Sentence(3 + rand.Intn(12))
	if runes := []rune(content); len(runes) > 140 {
		content = string(runes[:140])
	}

	// A sliver of seeded posts are hidden so moderation views have data.
	visible := rand.Intn(20) != 0

	// Spread posts over 36 hours so some fall outside the default feed window.
	age := time.Duration(rand.Intn(36*60)) * time.Minute
	createdAt := time.Now().Add(-age)

	post := &models.Post{
		Content:      content,
		CellID:       &cellID,
		Locality:     &slug,
		LocalityName: &name,
		Latitude:     &lat,
		Longitude:    &lng,
		IsVisible:    visible,
		CreatedAt:    createdAt,
	}

	reason := "Post is a harmless local note"
	if !visible {
		reason = "Seeded as blocked for testing"
	}
	record := &models.ModerationRecord{
		IsAllowed: visible,
		Reason:    reason,
	}
	return post, record
}

func clearData(db *gorm.DB) error {
	if err := db.Exec("DELETE FROM moderation_records").Error; err != nil {
		return err
	}
	return db.Exec("DELETE FROM posts").Error
}
