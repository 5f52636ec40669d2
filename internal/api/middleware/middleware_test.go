package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"grid-backtest/internal/api/models"
)

func TestErrorHandlerRecovers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/string", func(*gin.Context) { panic("boom") })
	r.GET("/error", func(*gin.Context) { panic(errors.New("bad state")) })
	r.GET("/other", func(*gin.Context) { panic(42) })

	for path, want := range map[string]string{
		"/string": "boom",
		"/error":  "bad state",
		"/other":  "An unexpected error occurred",
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%s: want 500, got %d", path, w.Code)
		}
		var resp models.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		if resp.Error.Code != "INTERNAL_ERROR" || resp.Error.Message != want {
			t.Errorf("%s: got %+v", path, resp.Error)
		}
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	called := false
	r.POST("/api", func(c *gin.Context) {
		called = true
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("preflight: want allow origin *, got %q", got)
	}
	if called {
		t.Error("preflight must not reach the handler")
	}

	req = httptest.NewRequest(http.MethodPost, "/api", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if !called || w.Code != http.StatusOK {
		t.Errorf("actual request: called=%v status=%d", called, w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("actual request: want allow origin *, got %q", got)
	}
}

func TestCORSAllowedOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://app.example, http://localhost:3000")
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	r.GET("/api", func(c *gin.Context) { c.Status(http.StatusOK) })

	for origin, want := range map[string]string{
		"http://localhost:3000": "http://localhost:3000",
		"http://evil.example":   "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/api", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != want {
			t.Errorf("%s: want %q, got %q", origin, want, got)
		}
	}
}

func TestLoggerPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusTeapot, "hi") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusTeapot || w.Body.String() != "hi" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}
