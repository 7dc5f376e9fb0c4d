// Package service contains the business logic between handlers and repositories.
package service

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"corkboard/internal/access"
	"corkboard/internal/geo"
	"corkboard/internal/locality"
	"corkboard/internal/moderation"
	"corkboard/internal/models"
	"corkboard/internal/observability"
	"corkboard/internal/repository"
)

// LocalityResolver reverse-geocodes a coordinate into a place.
type LocalityResolver interface {
	ResolveCoordinate(ctx context.Context, lat, lng float64) (locality.Place, error)
}

// Moderator classifies content; it never errors.
type Moderator interface {
	Classify(ctx context.Context, content string) moderation.Result
}

// PostService runs the write path: validate, authorize, index, geocode,
// moderate, persist.
type PostService struct {
	posts      repository.PostRepository
	cells      *geo.CellIndexer
	resolver   LocalityResolver
	gate       *access.Gate
	moderator  Moderator
	maxContent int
	logger     *slog.Logger
}

// CreatePostInput carries one write request through the pipeline.
type CreatePostInput struct {
	Content   string
	Latitude  float64
	Longitude float64
	Request   models.RequestContext
}

// CreatePostResult reports the outcome of an accepted write. Blocked posts
// are stored hidden; the caller still gets a confirmation, not an error.
type CreatePostResult struct {
	Post    *models.Post
	Blocked bool
	Reason  string
}

// NewPostService wires the write-path dependencies.
func NewPostService(
	posts repository.PostRepository,
	cells *geo.CellIndexer,
	resolver LocalityResolver,
	gate *access.Gate,
	mod Moderator,
	maxContent int,
	logger *slog.Logger,
) *PostService {
	if maxContent <= 0 {
		maxContent = 140
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostService{
		posts:      posts,
		cells:      cells,
		resolver:   resolver,
		gate:       gate,
		moderator:  mod,
		maxContent: maxContent,
		logger:     logger,
	}
}

// CreatePost runs a single note through the write pipeline. Validation and
// authorization reject before any network call; geocoding failures surface as
// errors; moderation never does, a blocked verdict stores the post hidden.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*CreatePostResult, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		observability.PostsCreated.WithLabelValues("rejected").Inc()
		return nil, models.NewValidationError("Content is required")
	}
	if len([]rune(content)) > s.maxContent {
		observability.PostsCreated.WithLabelValues("rejected").Inc()
		return nil, models.NewValidationError("Content too long")
	}
	if !geo.ValidCoordinate(in.Latitude, in.Longitude) {
		observability.PostsCreated.WithLabelValues("rejected").Inc()
		return nil, models.NewValidationError("Invalid coordinates")
	}

	if decision := s.gate.CanWrite(in.Request); !decision.Allowed {
		observability.PostsCreated.WithLabelValues("denied").Inc()
		return nil, models.NewAccessDeniedError("You can only post to your own locality")
	}

	span, ctx := observability.NewSpan(ctx, "post.create")
	defer span.End()

	cellID := s.cells.CellOf(in.Latitude, in.Longitude)
	span.AddAttributes(attribute.String("post.cell_id", cellID))

	place, err := s.resolver.ResolveCoordinate(ctx, in.Latitude, in.Longitude)
	if err != nil {
		observability.GeocodeFailures.Inc()
		observability.PostsCreated.WithLabelValues("failed").Inc()
		span.SetError(err)
		return nil, models.NewGeocodingUnavailableError(err)
	}

	verdict := s.moderator.Classify(ctx, content)

	lat, lng := in.Latitude, in.Longitude
	post := &models.Post{
		Content:      content,
		CellID:       &cellID,
		Locality:     &place.Slug,
		LocalityName: &place.Name,
		Latitude:     &lat,
		Longitude:    &lng,
		IsVisible:    verdict.Allowed,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		observability.PostsCreated.WithLabelValues("failed").Inc()
		span.SetError(err)
		return nil, models.NewStoreFailureError(err)
	}

	// Audit trail is best-effort: the post is already committed and a lost
	// record must not fail the request.
	record := &models.ModerationRecord{
		PostID:    post.ID,
		IsAllowed: verdict.Allowed,
		Reason:    verdict.Reason,
	}
	if err := s.posts.CreateModerationRecord(ctx, record); err != nil {
		s.logger.ErrorContext(ctx, "failed to store moderation record",
			slog.Uint64("post_id", uint64(post.ID)),
			slog.String("error", err.Error()),
		)
	}

	if verdict.Allowed {
		observability.PostsCreated.WithLabelValues("published").Inc()
	} else {
		observability.PostsCreated.WithLabelValues("blocked").Inc()
	}

	return &CreatePostResult{
		Post:    post,
		Blocked: !verdict.Allowed,
		Reason:  verdict.Reason,
	}, nil
}
