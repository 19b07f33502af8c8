package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/d60-Lab/hijabworld/config"
	"github.com/d60-Lab/hijabworld/internal/api/handler"
	"github.com/d60-Lab/hijabworld/internal/api/middleware"
	"github.com/d60-Lab/hijabworld/internal/service"
)

type userTokens struct{}

func (userTokens) ParseToken(token string) (*service.Claims, error) {
	if token == "user" {
		return &service.Claims{UserID: "u1"}, nil
	}
	return nil, errors.New("invalid")
}

func TestNewRouter_Guards(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Mode = gin.TestMode

	r := NewRouter(RouterOptions{
		Config:      cfg,
		Handler:     handler.New(nil, nil, nil, nil, nil),
		Tokens:      userTokens{},
		RateLimiter: middleware.NewIPRateLimiter(100, 100),
	})

	tests := []struct {
		method string
		path   string
		token  string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/api/orders", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/orders/my-orders", "bad", http.StatusUnauthorized},
		{http.MethodGet, "/api/notifications", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/admin/stats", "user", http.StatusForbidden},
		{http.MethodPut, "/api/admin/orders/abc", "user", http.StatusForbidden},
		{http.MethodGet, "/api/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
