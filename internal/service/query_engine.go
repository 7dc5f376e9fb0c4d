package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"corkboard/internal/cache"
	"corkboard/internal/geo"
	"corkboard/internal/locality"
	"corkboard/internal/models"
	"corkboard/internal/observability"
	"corkboard/internal/repository"
)

// Strategy selects how coordinate queries are narrowed to nearby posts.
type Strategy int

const (
	// StrategyLocality resolves the viewer's coordinate to a locality and
	// returns that locality's posts.
	StrategyLocality Strategy = iota
	// StrategyCell returns posts from the viewer's cell and its neighbors.
	StrategyCell
	// StrategyCellRadius narrows the cell neighborhood further with a
	// great-circle distance cutoff.
	StrategyCellRadius
)

// ParseStrategy maps a config string to a Strategy. Unknown values default
// to StrategyCellRadius.
func ParseStrategy(s string) Strategy {
	switch s {
	case "locality":
		return StrategyLocality
	case "cell":
		return StrategyCell
	default:
		return StrategyCellRadius
	}
}

func (s Strategy) String() string {
	switch s {
	case StrategyLocality:
		return "locality"
	case StrategyCell:
		return "cell"
	default:
		return "cell_radius"
	}
}

// Viewer describes where a feed request is looking from. Either a locality
// slug or a coordinate pair must be set; the slug wins when both are.
type Viewer struct {
	Locality  string
	Latitude  *float64
	Longitude *float64
}

// QueryEngine runs the read path: fresh, visible posts near the viewer,
// with coordinates stripped before anything leaves the service.
type QueryEngine struct {
	posts    repository.PostRepository
	cells    *geo.CellIndexer
	resolver LocalityResolver
	strategy Strategy
	window   time.Duration
	radius   float64
}

// NewQueryEngine wires the read-path dependencies. window is how far back
// the feed reaches; radius (miles) only applies to StrategyCellRadius.
func NewQueryEngine(
	posts repository.PostRepository,
	cells *geo.CellIndexer,
	resolver LocalityResolver,
	strategy Strategy,
	window time.Duration,
	radius float64,
) *QueryEngine {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if radius <= 0 {
		radius = 30
	}
	return &QueryEngine{
		posts:    posts,
		cells:    cells,
		resolver: resolver,
		strategy: strategy,
		window:   window,
		radius:   radius,
	}
}

// Query returns the feed for the viewer. Every returned post is visible,
// within the freshness window, and has its raw coordinates removed.
func (e *QueryEngine) Query(ctx context.Context, v Viewer) ([]*models.Post, error) {
	span, ctx := observability.NewSpan(ctx, "feed.query")
	defer span.End()
	span.AddAttributes(attribute.String("feed.strategy", e.strategy.String()))

	if v.Locality != "" {
		return e.queryLocality(ctx, locality.Slugify(v.Locality), true)
	}

	if v.Latitude == nil || v.Longitude == nil {
		return nil, models.NewValidationError("Either locality or coordinates are required")
	}
	lat, lng := *v.Latitude, *v.Longitude
	if !geo.ValidCoordinate(lat, lng) {
		return nil, models.NewValidationError("Invalid coordinates")
	}

	switch e.strategy {
	case StrategyLocality:
		place, err := e.resolver.ResolveCoordinate(ctx, lat, lng)
		if err != nil {
			observability.GeocodeFailures.Inc()
			span.SetError(err)
			return nil, models.NewGeocodingUnavailableError(err)
		}
		return e.queryLocality(ctx, place.Slug, false)
	case StrategyCell:
		observability.FeedQueries.WithLabelValues(StrategyCell.String()).Inc()
		return e.queryCells(ctx, lat, lng, false)
	default:
		observability.FeedQueries.WithLabelValues(StrategyCellRadius.String()).Inc()
		return e.queryCells(ctx, lat, lng, true)
	}
}

func (e *QueryEngine) queryLocality(ctx context.Context, slug string, explicit bool) ([]*models.Post, error) {
	observability.FeedQueries.WithLabelValues(StrategyLocality.String()).Inc()
	if slug == "" {
		return nil, models.NewValidationError("Invalid locality")
	}

	filter := repository.PostFilter{
		Locality:     slug,
		CreatedAfter: time.Now().Add(-e.window),
		VisibleOnly:  true,
	}

	var posts []*models.Post
	var err error
	if explicit {
		// Explicit locality feeds are the hot path (one per subdomain), so
		// they get a short cache-aside window.
		err = cache.CacheAside(ctx, cache.LocalityFeedKey(slug), &posts, cache.FeedTTL, func() error {
			var fetchErr error
			posts, fetchErr = e.posts.Query(ctx, filter)
			return fetchErr
		})
	} else {
		posts, err = e.posts.Query(ctx, filter)
	}
	if err != nil {
		return nil, models.NewStoreFailureError(err)
	}
	return stripAll(posts), nil
}

func (e *QueryEngine) queryCells(ctx context.Context, lat, lng float64, refine bool) ([]*models.Post, error) {
	posts, err := e.posts.Query(ctx, repository.PostFilter{
		CellIDs:      e.cells.NeighborhoodOf(lat, lng),
		CreatedAfter: time.Now().Add(-e.window),
		VisibleOnly:  true,
	})
	if err != nil {
		return nil, models.NewStoreFailureError(err)
	}

	if refine {
		viewer := geo.Coordinate{Lat: lat, Lng: lng}
		kept := posts[:0]
		for _, p := range posts {
			// Posts without stored coordinates cannot be distance-checked
			// and are dropped from radius feeds.
			if p.Latitude == nil || p.Longitude == nil {
				continue
			}
			at := geo.Coordinate{Lat: *p.Latitude, Lng: *p.Longitude}
			if geo.DistanceMiles(viewer, at) <= e.radius {
				kept = append(kept, p)
			}
		}
		posts = kept
	}

	return stripAll(posts), nil
}

func stripAll(posts []*models.Post) []*models.Post {
	for _, p := range posts {
		p.StripCoordinates()
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts
}
