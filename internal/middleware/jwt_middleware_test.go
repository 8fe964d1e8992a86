package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nomadsim/esim_api/internal/middleware"
	"github.com/nomadsim/esim_api/internal/utils"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")

	gin.SetMode(gin.TestMode)
	jwtMw := middleware.NewJWTMiddleware()

	r := gin.New()
	protected := r.Group("/admin", jwtMw.Handle())
	protected.GET("/me", func(c *gin.Context) {
		c.JSON(200, gin.H{"email": c.GetString("email"), "role": c.GetString("role")})
	})
	protected.POST("/orders/refund", jwtMw.RequireRole("admin", "operator"), func(c *gin.Context) {
		c.Status(200)
	})
	return r
}

func doRequest(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRejectsMissingToken(t *testing.T) {
	r := setupRouter(t)

	if w := doRequest(r, http.MethodGet, "/admin/me", ""); w.Code != 401 {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRejectsMalformedHeader(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/me", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 401 {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRejectsInvalidToken(t *testing.T) {
	r := setupRouter(t)

	if w := doRequest(r, http.MethodGet, "/admin/me", "not-a-jwt"); w.Code != 401 {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAcceptsValidToken(t *testing.T) {
	r := setupRouter(t)

	token, err := utils.GenerateJWT(7, "ops@nomadsim.mn", "viewer")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	w := doRequest(r, http.MethodGet, "/admin/me", token)
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestRequireRole(t *testing.T) {
	r := setupRouter(t)

	viewer, err := utils.GenerateJWT(1, "viewer@nomadsim.mn", "viewer")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	operator, err := utils.GenerateJWT(2, "ops@nomadsim.mn", "operator")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	if w := doRequest(r, http.MethodPost, "/admin/orders/refund", viewer); w.Code != 403 {
		t.Errorf("viewer: status = %d, want 403", w.Code)
	}
	if w := doRequest(r, http.MethodPost, "/admin/orders/refund", operator); w.Code != 200 {
		t.Errorf("operator: status = %d, want 200", w.Code)
	}
}
