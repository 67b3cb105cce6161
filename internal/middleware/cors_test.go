package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newCORSEcho(origins []string) *echo.Echo {
	e := echo.New()
	e.Use(CORS(origins))
	e.POST("/api/proxy", func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{}`))
	})
	return e
}

func TestCORS_AnyOrigin(t *testing.T) {
	e := newCORSEcho([]string{"*"})

	for _, origin := range []string{"http://localhost:9000", "https://dashboard.example", "null"} {
		t.Run(origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/proxy", http.NoBody)
			req.Header.Set(echo.HeaderOrigin, origin)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "*")
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	e := newCORSEcho([]string{"*"})

	req := httptest.NewRequest(http.MethodOptions, "/api/proxy", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "https://dashboard.example")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	req.Header.Set(echo.HeaderAccessControlRequestHeaders, "content-type")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "*")
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowHeaders); got != "content-type" {
		t.Errorf("Access-Control-Allow-Headers = %q, want %q", got, "content-type")
	}
}

func TestCORS_RestrictedOrigin(t *testing.T) {
	e := newCORSEcho([]string{"https://dashboard.example"})

	req := httptest.NewRequest(http.MethodPost, "/api/proxy", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "https://elsewhere.example")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty for unlisted origin", got)
	}
}
