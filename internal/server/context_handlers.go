package server

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"corkboard/internal/geo"
	"corkboard/internal/middleware"
	"corkboard/internal/models"
)

// GetContext handles GET /api/context. It tells the client which locality
// its origin addresses and whether a write would currently be authorized.
func (s *Server) GetContext(c *fiber.Ctx) error {
	rc := middleware.RequestContextFrom(c)
	decision := s.gate.CanWrite(rc)

	var slug *string
	if decision.Target != "" {
		slug = &decision.Target
	}

	return c.JSON(fiber.Map{
		"locality": slug,
		"can_post": decision.Allowed,
		"dev":      rc.DevMode,
	})
}

// SetLocality handles POST /api/context/locality. It resolves the client's
// coordinate to a locality and stores the slug in the locality cookie.
func (s *Server) SetLocality(c *fiber.Ctx) error {
	ctx := c.Context()

	var req struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if !geo.ValidCoordinate(req.Latitude, req.Longitude) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid coordinates"))
	}

	place, err := s.resolver.ResolveCoordinate(ctx, req.Latitude, req.Longitude)
	if err != nil {
		geocodeErr := models.NewGeocodingUnavailableError(err)
		return models.RespondWithError(c, models.StatusForError(geocodeErr), geocodeErr)
	}

	c.Cookie(&fiber.Cookie{
		Name:     s.config.LocalityCookie,
		Value:    place.Slug,
		Expires:  time.Now().Add(24 * time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.JSON(fiber.Map{
		"locality": place.Slug,
		"name":     place.Name,
	})
}
