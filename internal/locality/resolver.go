// Package locality turns coordinates and request origins into canonical
// locality slugs.
package locality

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// ErrGeocodingUnavailable is returned when the upstream geocoder is
// unreachable, errors, or yields no usable locality component. Callers must
// surface it rather than invent a locality, because posting authorization
// depends on the resolved slug.
var ErrGeocodingUnavailable = errors.New("geocoding unavailable")

// Place is a resolved locality: display name plus canonical slug.
type Place struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9-]+`)
	slugCollapse = regexp.MustCompile(`-+`)
)

// Slugify normalizes a locality name into its canonical slug: lowercase,
// whitespace to hyphens, everything else non-alphanumeric dropped, hyphen
// runs collapsed, edges trimmed. Idempotent.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Join(strings.Fields(s), "-")
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SubdomainSlug extracts the locality label from a hostname of the shape
// <locality>.<root>.<tld> (three or more labels ending in the service's root
// domain). It returns "" for the bare root domain, unrelated hosts, and
// anything else that does not match. No network calls.
func SubdomainSlug(hostname, rootDomain string) string {
	host := strings.ToLower(hostname)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	root := strings.ToLower(rootDomain)

	if host == root || !strings.HasSuffix(host, "."+root) {
		return ""
	}
	parts := strings.Split(host, ".")
	if len(parts) < 3 {
		return ""
	}
	return parts[0]
}

// geocodeResponse mirrors the reverse-geocoding API's JSON shape.
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
}

// componentPriority lists locality-type address components from most to
// least specific. The first match wins.
var componentPriority = []string{
	"locality",
	"sublocality",
	"administrative_area_level_2",
}

// Resolver resolves coordinates to localities via an external
// reverse-geocoding service.
type Resolver struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewResolver returns a Resolver for the given geocoder endpoint. timeout
// bounds each upstream call; a timeout is treated as unavailability.
func NewResolver(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ResolveCoordinate reverse-geocodes a coordinate into a Place. The most
// specific locality-type component is used; broader administrative levels
// are fallbacks. Returns ErrGeocodingUnavailable (wrapped) on any upstream
// failure or when no usable component exists.
func (r *Resolver) ResolveCoordinate(ctx context.Context, lat, lng float64) (Place, error) {
	url := fmt.Sprintf("%s/json?latlng=%f,%f&key=%s", r.baseURL, lat, lng, r.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Place{}, fmt.Errorf("%w: %v", ErrGeocodingUnavailable, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.WarnContext(ctx, "geocoder request failed", slog.String("error", err.Error()))
		return Place{}, fmt.Errorf("%w: %v", ErrGeocodingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.WarnContext(ctx, "geocoder returned non-OK status", slog.Int("status", resp.StatusCode))
		return Place{}, fmt.Errorf("%w: upstream status %d", ErrGeocodingUnavailable, resp.StatusCode)
	}

	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Place{}, fmt.Errorf("%w: decode response: %v", ErrGeocodingUnavailable, err)
	}
	if body.Status != "OK" || len(body.Results) == 0 {
		return Place{}, fmt.Errorf("%w: upstream result status %q", ErrGeocodingUnavailable, body.Status)
	}

	for _, wanted := range componentPriority {
		for _, result := range body.Results {
			for _, component := range result.AddressComponents {
				for _, t := range component.Types {
					if t == wanted && component.LongName != "" {
						return Place{
							Name: component.LongName,
							Slug: Slugify(component.LongName),
						}, nil
					}
				}
			}
		}
	}

	return Place{}, fmt.Errorf("%w: no locality component in response", ErrGeocodingUnavailable)
}
