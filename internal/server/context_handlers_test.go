package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corkboard/internal/locality"
)

func TestGetContext_AuthorizedWriter(t *testing.T) {
	srv, _ := setupServer(t, testConfig("production"), springfieldResolver(), allowModerator())
	app := srv.App()

	req := httptest.NewRequest(http.MethodGet, "http://springfield.corkboard.app/api/context", nil)
	req.AddCookie(&http.Cookie{Name: "corkboard_locality", Value: "springfield"})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Locality *string `json:"locality"`
		CanPost  bool    `json:"can_post"`
		Dev      bool    `json:"dev"`
	}
	decodeJSON(t, resp, &body)
	require.NotNil(t, body.Locality)
	assert.Equal(t, "springfield", *body.Locality)
	assert.True(t, body.CanPost)
	assert.False(t, body.Dev)
}

func TestGetContext_CookieMismatch(t *testing.T) {
	srv, _ := setupServer(t, testConfig("production"), springfieldResolver(), allowModerator())
	app := srv.App()

	req := httptest.NewRequest(http.MethodGet, "http://springfield.corkboard.app/api/context", nil)
	req.AddCookie(&http.Cookie{Name: "corkboard_locality", Value: "shelbyville"})

	resp, err := app.Test(req)
	require.NoError(t, err)

	var body struct {
		Locality *string `json:"locality"`
		CanPost  bool    `json:"can_post"`
	}
	decodeJSON(t, resp, &body)
	require.NotNil(t, body.Locality)
	assert.Equal(t, "springfield", *body.Locality)
	assert.False(t, body.CanPost)
}

func TestGetContext_RootDomain(t *testing.T) {
	srv, _ := setupServer(t, testConfig("production"), springfieldResolver(), allowModerator())
	app := srv.App()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "http://corkboard.app/api/context", nil))
	require.NoError(t, err)

	var body struct {
		Locality *string `json:"locality"`
		CanPost  bool    `json:"can_post"`
	}
	decodeJSON(t, resp, &body)
	assert.Nil(t, body.Locality)
	assert.False(t, body.CanPost)
}

func TestGetContext_DevMode(t *testing.T) {
	srv, _ := setupServer(t, testConfig("test"), springfieldResolver(), allowModerator())
	app := srv.App()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "http://localhost:3000/api/context", nil))
	require.NoError(t, err)

	var body struct {
		CanPost bool `json:"can_post"`
		Dev     bool `json:"dev"`
	}
	decodeJSON(t, resp, &body)
	assert.True(t, body.CanPost)
	assert.True(t, body.Dev)
}

func TestSetLocality(t *testing.T) {
	srv, _ := setupServer(t, testConfig("test"), springfieldResolver(), allowModerator())
	app := srv.App()

	req := httptest.NewRequest(http.MethodPost, "/api/context/locality",
		strings.NewReader(`{"latitude": 39.8, "longitude": -89.65}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Locality string `json:"locality"`
		Name     string `json:"name"`
	}
	decodeJSON(t, resp, &body)
	assert.Equal(t, "springfield", body.Locality)
	assert.Equal(t, "Springfield", body.Name)

	var cookie string
	for _, h := range resp.Header.Values("Set-Cookie") {
		if strings.HasPrefix(h, "corkboard_locality=") {
			cookie = h
		}
	}
	require.NotEmpty(t, cookie)
	assert.Contains(t, cookie, "corkboard_locality=springfield")
	assert.Contains(t, cookie, "HttpOnly")
}

func TestSetLocality_InvalidCoordinates(t *testing.T) {
	srv, _ := setupServer(t, testConfig("test"), springfieldResolver(), allowModerator())
	app := srv.App()

	for _, body := range []string{
		`{"latitude": 95, "longitude": 0}`,
		`{"latitude": `,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/context/locality", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestSetLocality_GeocoderDown(t *testing.T) {
	resolver := &resolverStub{err: locality.ErrGeocodingUnavailable}
	srv, _ := setupServer(t, testConfig("test"), resolver, allowModerator())
	app := srv.App()

	req := httptest.NewRequest(http.MethodPost, "/api/context/locality",
		strings.NewReader(`{"latitude": 39.8, "longitude": -89.65}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	_ = resp.Body.Close()
}
