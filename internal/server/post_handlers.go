package server

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"corkboard/internal/middleware"
	"corkboard/internal/models"
	"corkboard/internal/service"
)

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	ctx := c.Context()

	var req struct {
		Content   string  `json:"content"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	result, err := s.postService.CreatePost(ctx, service.CreatePostInput{
		Content:   req.Content,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Request:   middleware.RequestContextFrom(c),
	})
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	if result.Blocked {
		// A blocked post is stored hidden. The author gets a confirmation,
		// not an error, so they cannot probe the moderation boundary.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success": false,
			"blocked": true,
			"message": "Your post was not published.",
		})
	}

	result.Post.StripCoordinates()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"post":    result.Post,
	})
}

// GetPosts handles GET /api/posts?lat=..&lng=..&locality=..
func (s *Server) GetPosts(c *fiber.Ctx) error {
	ctx := c.Context()

	viewer := service.Viewer{Locality: c.Query("locality")}

	if latStr, lngStr := c.Query("lat"), c.Query("lng"); latStr != "" || lngStr != "" {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lng, lngErr := strconv.ParseFloat(lngStr, 64)
		if latErr != nil || lngErr != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("lat and lng must both be valid numbers"))
		}
		viewer.Latitude = &lat
		viewer.Longitude = &lng
	}

	// With no explicit locality, fall back to the one the origin subdomain
	// implies, so city feeds work without any query parameters.
	if viewer.Locality == "" && viewer.Latitude == nil {
		if slug, ok := c.Locals("localitySlug").(string); ok {
			viewer.Locality = slug
		}
	}

	posts, err := s.queryEngine.Query(ctx, viewer)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	return c.JSON(posts)
}

// GetPostModeration handles GET /api/posts/:id/moderation
func (s *Server) GetPostModeration(c *fiber.Ctx) error {
	ctx := c.Context()

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
	}

	// Verdicts are an operator surface. Outside dev mode the endpoint answers
	// as if the post does not exist, so authors cannot look up why their own
	// post was blocked.
	if !middleware.RequestContextFrom(c).DevMode {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Post", id))
	}

	recs, err := s.postRepo.ModerationRecordsForPost(ctx, uint(id))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewStoreFailureError(err))
	}
	if len(recs) == 0 {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Post", id))
	}

	return c.JSON(recs)
}
