package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corkboard/internal/access"
	"corkboard/internal/geo"
	"corkboard/internal/locality"
	"corkboard/internal/models"
	"corkboard/internal/moderation"
	"corkboard/internal/repository"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn           func(context.Context, *models.Post) error
	queryFn            func(context.Context, repository.PostFilter) ([]*models.Post, error)
	createRecordFn     func(context.Context, *models.ModerationRecord) error
	recordsForPostFn   func(context.Context, uint) ([]*models.ModerationRecord, error)
	createdPosts       []*models.Post
	createdModerations []*models.ModerationRecord
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	if s.createFn != nil {
		return s.createFn(ctx, post)
	}
	post.ID = uint(len(s.createdPosts) + 1)
	s.createdPosts = append(s.createdPosts, post)
	return nil
}

func (s *postRepoStub) Query(ctx context.Context, filter repository.PostFilter) ([]*models.Post, error) {
	if s.queryFn != nil {
		return s.queryFn(ctx, filter)
	}
	return nil, nil
}

func (s *postRepoStub) CreateModerationRecord(ctx context.Context, rec *models.ModerationRecord) error {
	if s.createRecordFn != nil {
		return s.createRecordFn(ctx, rec)
	}
	s.createdModerations = append(s.createdModerations, rec)
	return nil
}

func (s *postRepoStub) ModerationRecordsForPost(ctx context.Context, postID uint) ([]*models.ModerationRecord, error) {
	if s.recordsForPostFn != nil {
		return s.recordsForPostFn(ctx, postID)
	}
	return nil, nil
}

// resolverStub is a stub for LocalityResolver.
type resolverStub struct {
	place locality.Place
	err   error
	calls int
}

func (s *resolverStub) ResolveCoordinate(_ context.Context, _, _ float64) (locality.Place, error) {
	s.calls++
	return s.place, s.err
}

// moderatorStub is a stub for Moderator.
type moderatorStub struct {
	result moderation.Result
	calls  int
}

func (s *moderatorStub) Classify(_ context.Context, _ string) moderation.Result {
	s.calls++
	return s.result
}

func allowAll() *moderatorStub {
	return &moderatorStub{result: moderation.Result{Allowed: true, Reason: "fine"}}
}

func sfResolver() *resolverStub {
	return &resolverStub{place: locality.Place{Name: "San Francisco", Slug: "san-francisco"}}
}

func newTestService(repo *postRepoStub, resolver *resolverStub, mod *moderatorStub) *PostService {
	return NewPostService(
		repo,
		geo.NewCellIndexer(geo.DefaultCellPrecision),
		resolver,
		access.NewGate("corkboard.app"),
		mod,
		140,
		nil,
	)
}

func sfRequest() models.RequestContext {
	return models.RequestContext{
		Origin:        "san-francisco.corkboard.app",
		LocalityToken: "san-francisco",
	}
}

// assertAppErrorCode asserts that err is an AppError with the given code.
func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func TestCreatePost_Published(t *testing.T) {
	repo := &postRepoStub{}
	resolver := sfResolver()
	mod := allowAll()
	svc := newTestService(repo, resolver, mod)

	result, err := svc.CreatePost(context.Background(), CreatePostInput{
		Content:   "the fog finally lifted",
		Latitude:  37.7749,
		Longitude: -122.4194,
		Request:   sfRequest(),
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Blocked)

	require.Len(t, repo.createdPosts, 1)
	post := repo.createdPosts[0]
	assert.Equal(t, "the fog finally lifted", post.Content)
	assert.True(t, post.IsVisible)
	require.NotNil(t, post.CellID)
	assert.Equal(t, "9q8y", *post.CellID)
	require.NotNil(t, post.Locality)
	assert.Equal(t, "san-francisco", *post.Locality)
	require.NotNil(t, post.LocalityName)
	assert.Equal(t, "San Francisco", *post.LocalityName)
	require.NotNil(t, post.Latitude)
	assert.Equal(t, 37.7749, *post.Latitude)

	require.Len(t, repo.createdModerations, 1)
	assert.True(t, repo.createdModerations[0].IsAllowed)
	assert.Equal(t, post.ID, repo.createdModerations[0].PostID)
}

func TestCreatePost_BlockedStoredHidden(t *testing.T) {
	repo := &postRepoStub{}
	mod := &moderatorStub{result: moderation.Result{Allowed: false, Reason: "hate speech"}}
	svc := newTestService(repo, sfResolver(), mod)

	result, err := svc.CreatePost(context.Background(), CreatePostInput{
		Content:   "something hateful",
		Latitude:  37.7749,
		Longitude: -122.4194,
		Request:   sfRequest(),
	})
	require.NoError(t, err)
	assert.True(t, result.Blocked)
	assert.Equal(t, "hate speech", result.Reason)

	// The post is persisted, just invisible.
	require.Len(t, repo.createdPosts, 1)
	assert.False(t, repo.createdPosts[0].IsVisible)

	require.Len(t, repo.createdModerations, 1)
	assert.False(t, repo.createdModerations[0].IsAllowed)
	assert.Equal(t, "hate speech", repo.createdModerations[0].Reason)
}

func TestCreatePost_ContentValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\t  "},
		{"too long", strings.Repeat("x", 141)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &postRepoStub{}
			resolver := sfResolver()
			mod := allowAll()
			svc := newTestService(repo, resolver, mod)

			_, err := svc.CreatePost(context.Background(), CreatePostInput{
				Content:   tt.content,
				Latitude:  37.7749,
				Longitude: -122.4194,
				Request:   sfRequest(),
			})
			assertAppErrorCode(t, err, models.CodeValidation)

			// Nothing downstream runs for invalid input.
			assert.Zero(t, resolver.calls)
			assert.Zero(t, mod.calls)
			assert.Empty(t, repo.createdPosts)
		})
	}
}

func TestCreatePost_ContentLengthIsRuneBased(t *testing.T) {
	repo := &postRepoStub{}
	svc := newTestService(repo, sfResolver(), allowAll())

	// 140 multibyte characters are within the limit even though the byte
	// count is far larger.
	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		Content:   strings.Repeat("é", 140),
		Latitude:  37.7749,
		Longitude: -122.4194,
		Request:   sfRequest(),
	})
	assert.NoError(t, err)
}

func TestCreatePost_InvalidCoordinates(t *testing.T) {
	repo := &postRepoStub{}
	svc := newTestService(repo, sfResolver(), allowAll())

	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		Content:   "hello",
		Latitude:  95,
		Longitude: 0,
		Request:   sfRequest(),
	})
	assertAppErrorCode(t, err, models.CodeValidation)
	assert.Empty(t, repo.createdPosts)
}

func TestCreatePost_AccessDenied(t *testing.T) {
	repo := &postRepoStub{}
	resolver := sfResolver()
	mod := allowAll()
	svc := newTestService(repo, resolver, mod)

	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		Content:   "posting from the wrong city",
		Latitude:  37.7749,
		Longitude: -122.4194,
		Request: models.RequestContext{
			Origin:        "san-francisco.corkboard.app",
			LocalityToken: "shelbyville",
		},
	})
	assertAppErrorCode(t, err, models.CodeAccessDenied)

	// Denied before any network call.
	assert.Zero(t, resolver.calls)
	assert.Zero(t, mod.calls)
	assert.Empty(t, repo.createdPosts)
}

func TestCreatePost_GeocoderDown(t *testing.T) {
	repo := &postRepoStub{}
	resolver := &resolverStub{err: locality.ErrGeocodingUnavailable}
	mod := allowAll()
	svc := newTestService(repo, resolver, mod)

	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		Content:   "hello",
		Latitude:  37.7749,
		Longitude: -122.4194,
		Request:   sfRequest(),
	})
	assertAppErrorCode(t, err, models.CodeGeocodingUnavailable)

	assert.Zero(t, mod.calls)
	assert.Empty(t, repo.createdPosts)
}

func TestCreatePost_StoreFailure(t *testing.T) {
	repo := &postRepoStub{
		createFn: func(_ context.Context, _ *models.Post) error {
			return errors.New("connection reset")
		},
	}
	svc := newTestService(repo, sfResolver(), allowAll())

	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		Content:   "hello",
		Latitude:  37.7749,
		Longitude: -122.4194,
		Request:   sfRequest(),
	})
	assertAppErrorCode(t, err, models.CodeStoreFailure)
}

func TestCreatePost_ModerationRecordFailureDoesNotFailRequest(t *testing.T) {
	repo := &postRepoStub{
		createRecordFn: func(_ context.Context, _ *models.ModerationRecord) error {
			return errors.New("audit table full")
		},
	}
	svc := newTestService(repo, sfResolver(), allowAll())

	result, err := svc.CreatePost(context.Background(), CreatePostInput{
		Content:   "hello",
		Latitude:  37.7749,
		Longitude: -122.4194,
		Request:   sfRequest(),
	})
	require.NoError(t, err)
	assert.False(t, result.Blocked)
	require.Len(t, repo.createdPosts, 1)
}

func TestCreatePost_FallbackVerdictStillPublishes(t *testing.T) {
	repo := &postRepoStub{}
	mod := &moderatorStub{result: moderation.Result{
		Allowed:  true,
		Reason:   moderation.FallbackReason,
		Fallback: true,
	}}
	svc := newTestService(repo, sfResolver(), mod)

	result, err := svc.CreatePost(context.Background(), CreatePostInput{
		Content:   "hello",
		Latitude:  37.7749,
		Longitude: -122.4194,
		Request:   sfRequest(),
	})
	require.NoError(t, err)
	assert.False(t, result.Blocked)

	// The fallback reason lands in the audit record.
	require.Len(t, repo.createdModerations, 1)
	assert.Equal(t, moderation.FallbackReason, repo.createdModerations[0].Reason)
}

func TestCreatePost_TrimsContent(t *testing.T) {
	repo := &postRepoStub{}
	svc := newTestService(repo, sfResolver(), allowAll())

	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		Content:   "  spaced out  ",
		Latitude:  37.7749,
		Longitude: -122.4194,
		Request:   sfRequest(),
	})
	require.NoError(t, err)
	require.Len(t, repo.createdPosts, 1)
	assert.Equal(t, "spaced out", repo.createdPosts[0].Content)
}
