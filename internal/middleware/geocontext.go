package middleware

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"corkboard/internal/locality"
	"corkboard/internal/models"
)

// RequestContextLocal is the Fiber locals key holding the per-request
// models.RequestContext built by LocalityContext.
const RequestContextLocal = "requestContext"

// LocalityContext builds the request's locality context from the Origin
// header (falling back to the Host header) and the locality cookie, and
// stores it in Fiber locals for handlers downstream.
func LocalityContext(rootDomain, cookieName string, devMode bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin := originHost(c)

		rc := models.RequestContext{
			Origin:        origin,
			LocalityToken: c.Cookies(cookieName),
			DevMode:       devMode,
		}
		c.Locals(RequestContextLocal, rc)

		if slug := locality.SubdomainSlug(origin, rootDomain); slug != "" {
			c.Locals("localitySlug", slug)
		}

		return c.Next()
	}
}

// RequestContextFrom retrieves the locality context stored by LocalityContext.
// Returns a zero value when the middleware did not run.
func RequestContextFrom(c *fiber.Ctx) models.RequestContext {
	if rc, ok := c.Locals(RequestContextLocal).(models.RequestContext); ok {
		return rc
	}
	return models.RequestContext{}
}

// originHost extracts the host the browser addressed. Browsers send Origin on
// cross-origin requests; same-origin requests fall back to the Host header.
func originHost(c *fiber.Ctx) string {
	if o := c.Get(fiber.HeaderOrigin); o != "" {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return c.Hostname()
}
