// Package access decides whether a request may write into a locality.
package access

import (
	"corkboard/internal/locality"
	"corkboard/internal/models"
)

// Decision is the outcome of a write-authorization check. Target is the
// locality slug derived from the request origin, "" when none resolved.
type Decision struct {
	Allowed bool
	Target  string
}

// Gate checks that the locality a client addresses matches the locality it
// claims. This is a consistency check, not authentication: the client token
// is self-reported.
type Gate struct {
	rootDomain string
}

// NewGate returns a Gate bound to the service's root domain.
func NewGate(rootDomain string) *Gate {
	return &Gate{rootDomain: rootDomain}
}

// CanWrite authorizes a write into the locality addressed by the request
// origin. Dev mode always passes. Otherwise the origin must carry a locality
// subdomain and the client's token must match it after normalization.
func (g *Gate) CanWrite(rc models.RequestContext) Decision {
	if rc.DevMode {
		return Decision{Allowed: true, Target: locality.SubdomainSlug(rc.Origin, g.rootDomain)}
	}

	target := locality.SubdomainSlug(rc.Origin, g.rootDomain)
	if target == "" {
		return Decision{Allowed: false}
	}
	if locality.Slugify(rc.LocalityToken) != target {
		return Decision{Allowed: false, Target: target}
	}
	return Decision{Allowed: true, Target: target}
}
