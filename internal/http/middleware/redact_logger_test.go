package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestRedact(t *testing.T) {
	tests := []struct{ in, want string }{
		{"email=ana@example.com", "email=[REDACTED:email]"},
		{"tel=+55 11 91234-5678", "tel=[REDACTED:phone]"},
		{"page=2&page_size=20", "page=2&page_size=20"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := redact(tc.in); got != tc.want {
			t.Fatalf("redact(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
	tok := "dOqkW3xT0aM:APA91bHun4MxP5egoKMwt2KZFBaFUH-1RYqx_abcdefghijklmnopqrstuvwxyz0123456789ABCDEFGH"
	if got := redact("token=" + tok); got != "token=[REDACTED:token]" {
		t.Fatalf("push token not redacted: %q", got)
	}
}

func TestRedactingLogger_ScrubsAndAttaches(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	r := gin.New()
	r.Use(RequestID(), Identity(), RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/properties/:id", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("inside handler")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/properties/7?contact=ana@example.com", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Api-Key", "k-123")
	req.Header.Set("X-User-ID", "42")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, leak := range []string{"secret", "k-123", "ana@example.com"} {
		if strings.Contains(out, leak) {
			t.Fatalf("log leaked %q: %s", leak, out)
		}
	}
	for _, want := range []string{`"path":"/properties/:id"`, `"user_id":42`, `"message":"inside handler"`, `"message":"http_request"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %s: %s", want, out)
		}
	}
}

func TestRedactingLogger_LevelByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for status, level := range map[int]string{200: "info", 404: "warn", 503: "error"} {
		buf := captureLogs(t)
		r := gin.New()
		r.Use(RedactingLogger(RedactOptions{}))
		r.GET("/", func(c *gin.Context) { c.Status(status) })
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if !strings.Contains(buf.String(), `"level":"`+level+`"`) {
			t.Fatalf("status %d logged as %s; want %s", status, buf.String(), level)
		}
	}
}
