// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"corkboard/internal/cache"
	"corkboard/internal/models"
	"corkboard/internal/observability"
)

// observeQuery times a store operation into the query latency histogram.
func observeQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		observability.DatabaseQueryLatency.
			WithLabelValues(operation, table).
			Observe(time.Since(start).Seconds())
	}
}

// DefaultFeedLimit caps how many posts a single feed query returns.
const DefaultFeedLimit = 200

// PostFilter narrows a feed query. Zero-valued fields are ignored, so a
// caller sets exactly the dimensions its strategy needs.
type PostFilter struct {
	// CellIDs restricts to posts indexed under any of these cells.
	CellIDs []string
	// Locality restricts to posts tagged with this locality slug.
	Locality string
	// CreatedAfter drops posts older than this instant.
	CreatedAfter time.Time
	// VisibleOnly drops posts hidden by moderation.
	VisibleOnly bool
	// Limit caps the result set; DefaultFeedLimit when <= 0.
	Limit int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	Query(ctx context.Context, filter PostFilter) ([]*models.Post, error)
	CreateModerationRecord(ctx context.Context, rec *models.ModerationRecord) error
	ModerationRecordsForPost(ctx context.Context, postID uint) ([]*models.ModerationRecord, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observeQuery("create", "posts")()

	err := r.db.WithContext(ctx).Create(post).Error
	if err == nil && post.Locality != nil {
		cache.InvalidateLocalityFeed(ctx, *post.Locality)
	}
	return err
}

func (r *postRepository) Query(ctx context.Context, filter PostFilter) ([]*models.Post, error) {
	defer observeQuery("query", "posts")()

	db := r.db.WithContext(ctx).Model(&models.Post{})

	if len(filter.CellIDs) > 0 {
		db = db.Where("cell_id IN ?", filter.CellIDs)
	}
	if filter.Locality != "" {
		db = db.Where("locality = ?", filter.Locality)
	}
	if !filter.CreatedAfter.IsZero() {
		db = db.Where("created_at > ?", filter.CreatedAfter)
	}
	if filter.VisibleOnly {
		db = db.Where("is_visible = ?", true)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultFeedLimit
	}

	var posts []*models.Post
	err := db.Order("created_at DESC").Limit(limit).Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) CreateModerationRecord(ctx context.Context, rec *models.ModerationRecord) error {
	defer observeQuery("create", "moderation_records")()

	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *postRepository) ModerationRecordsForPost(ctx context.Context, postID uint) ([]*models.ModerationRecord, error) {
	defer observeQuery("query", "moderation_records")()

	var recs []*models.ModerationRecord
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}
