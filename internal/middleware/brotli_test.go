package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

func TestBrotli(t *testing.T) {
	gin.SetMode(gin.TestMode)
	big := strings.Repeat("exam pin ", 500)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, big) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	t.Run("large body is compressed", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/big", nil)
		req.Header.Set("Accept-Encoding", "gzip, br")
		r.ServeHTTP(w, req)

		if got := w.Header().Get("Content-Encoding"); got != "br" {
			t.Fatalf("Content-Encoding = %q", got)
		}
		body, err := io.ReadAll(brotli.NewReader(w.Body))
		if err != nil {
			t.Fatal(err)
		}
		if string(body) != big {
			t.Errorf("decoded body differs (%d bytes)", len(body))
		}
	})

	t.Run("small body is plain", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/small", nil)
		req.Header.Set("Accept-Encoding", "br")
		r.ServeHTTP(w, req)

		if w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
			t.Errorf("encoding=%q body=%q", w.Header().Get("Content-Encoding"), w.Body.String())
		}
	})

	t.Run("client without br", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/big", nil))
		if w.Header().Get("Content-Encoding") != "" || w.Body.String() != big {
			t.Error("expected uncompressed body")
		}
	})
}
