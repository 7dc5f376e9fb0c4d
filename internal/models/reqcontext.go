package models

// RequestContext carries the request-scoped facts the write path needs to
// authorize a post. It is built once per request by middleware and passed
// explicitly into services, never read from globals.
type RequestContext struct {
	// Origin is the hostname the client addressed, e.g.
	// "springfield.corkboard.app".
	Origin string
	// LocalityToken is the client-held locality slug (cookie value). It is
	// self-reported and carries no proof; the access gate only checks it for
	// consistency with the origin.
	LocalityToken string
	// DevMode bypasses the access gate for local development.
	DevMode bool
}
