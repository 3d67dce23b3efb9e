package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(cfg))
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Post("/api/v1/papers", ok)
	app.Post("/api/v1/papers/batch", ok)
	app.Get("/api/v1/papers", ok)
	return app
}

func post(t *testing.T, app *fiber.App, path, contentType, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRejectsWrongContentType(t *testing.T) {
	app := newApp(Config{})

	resp := post(t, app, "/api/v1/papers", "text/plain", "hello")
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestRejectsOversizedBody(t *testing.T) {
	app := newApp(Config{MaxBodyBytes: 16})

	resp := post(t, app, "/api/v1/papers", "application/json",
		`{"paper_id": "p1", "padding": "xxxxxxxxxxxxxxxxxxxxxxxx"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestRequiresPaperID(t *testing.T) {
	app := newApp(Config{})

	resp := post(t, app, "/api/v1/papers", "application/json", `{"mentions": []}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, app, "/api/v1/papers", "application/json", `{"paper_id": "   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPaperIDPattern(t *testing.T) {
	app := newApp(Config{})

	// DOIs and arXiv ids are the common shapes.
	for _, id := range []string{"10.1287/orsc.2021.1456", "arXiv:2301.00001", "ssrn-4412345"} {
		resp := post(t, app, "/api/v1/papers", "application/json", `{"paper_id": "`+id+`"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "id %q should pass", id)
	}

	for _, id := range []string{"has spaces", `quo"te`, "-leading-dash"} {
		resp := post(t, app, "/api/v1/papers", "application/json", `{"paper_id": "`+strings.ReplaceAll(id, `"`, `\"`)+`"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "id %q should be rejected", id)
	}
}

func TestBatchNeedsPapers(t *testing.T) {
	app := newApp(Config{})

	resp := post(t, app, "/api/v1/papers/batch", "application/json", `{"papers": []}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, app, "/api/v1/papers/batch", "application/json", `{"papers": [{"paper_id": "p1"}]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadsPassThrough(t *testing.T) {
	app := newApp(Config{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/papers", nil), -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMalformedJSONRejected(t *testing.T) {
	app := newApp(Config{})

	resp := post(t, app, "/api/v1/papers", "application/json", `{"paper_id": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
