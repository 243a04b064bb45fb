package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/courseware-backend/internal/config"
	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/service"
)

func init() { gin.SetMode(gin.TestMode) }

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (m *memCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if m.counts == nil {
		m.counts = map[string]int64{}
	}
	m.counts[key]++
	return m.counts[key], nil
}

func withClaims(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextKeyClaims, &service.Claims{UserID: uuid.New(), Role: role})
		c.Next()
	}
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		role model.Role
		want int
	}{
		{model.RoleStudent, http.StatusForbidden},
		{model.RoleTeacher, http.StatusOK},
		{model.RoleAdmin, http.StatusOK},
	}
	for _, tc := range cases {
		r := gin.New()
		r.GET("/x", withClaims(tc.role), RequireEditor(), func(c *gin.Context) { c.Status(http.StatusOK) })
		if w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)); w.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.role, w.Code, tc.want)
		}
	}

	r := gin.New()
	r.GET("/x", RequireEditor(), func(c *gin.Context) { c.Status(http.StatusOK) })
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)); w.Code != http.StatusUnauthorized {
		t.Errorf("no claims: status = %d", w.Code)
	}
}

func TestRequireAuth(t *testing.T) {
	auth := service.NewAuthService(&config.Config{JWTSecret: "s", JWTExpiry: time.Hour}, nil, zerolog.Nop())
	token, err := auth.GenerateToken(uuid.New(), model.RoleStudent)
	if err != nil {
		t.Fatal(err)
	}

	r := gin.New()
	r.GET("/x", RequireAuth(auth), func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok || actor.Role != model.RoleStudent {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if w := serve(r, req); w.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	if w := serve(r, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d", w.Code)
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/x?token="+token, nil)); w.Code != http.StatusUnauthorized {
		t.Fatalf("query token on REST route: status = %d", w.Code)
	}

	ws := gin.New()
	ws.GET("/ws", RequireWSAuth(auth), func(c *gin.Context) { c.Status(http.StatusOK) })
	if w := serve(ws, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)); w.Code != http.StatusOK {
		t.Fatalf("ws token: status = %d", w.Code)
	}
	if w := serve(ws, httptest.NewRequest(http.MethodGet, "/ws", nil)); w.Code != http.StatusUnauthorized {
		t.Fatalf("ws without token: status = %d", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	counter := &memCounter{}
	rl := NewRateLimiter(counter, "login", 2, time.Minute, zerolog.Nop())
	rl.now = func() time.Time { return time.Unix(600, 0) }

	r := gin.New()
	r.POST("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(r, httptest.NewRequest(http.MethodPost, "/login", nil)).Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}

	rl.now = func() time.Time { return time.Unix(660, 0) }
	if w := serve(r, httptest.NewRequest(http.MethodPost, "/login", nil)); w.Code != http.StatusOK {
		t.Fatalf("next window: status = %d", w.Code)
	}

	counter.err = errors.New("redis down")
	if w := serve(r, httptest.NewRequest(http.MethodPost, "/login", nil)); w.Code != http.StatusOK {
		t.Fatalf("counter failure must not block: status = %d", w.Code)
	}
}

func TestBrotli(t *testing.T) {
	body := strings.Repeat("block content ", 200)
	r := gin.New()
	r.Use(Brotli())
	r.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, body) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/uploads/v.mp4", func(c *gin.Context) { c.String(http.StatusOK, body) })

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip, br")
	w := serve(r, req)
	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatal("expected br encoding")
	}
	plain, err := io.ReadAll(brotli.NewReader(w.Body))
	if err != nil || string(plain) != body {
		t.Fatalf("decoded body mismatch: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = serve(r, req)
	if w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
		t.Fatalf("small body: encoding=%q body=%q", w.Header().Get("Content-Encoding"), w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/uploads/v.mp4", nil)
	req.Header.Set("Accept-Encoding", "br")
	if w := serve(r, req); w.Header().Get("Content-Encoding") != "" {
		t.Fatal("uploads must not be compressed")
	}
}
