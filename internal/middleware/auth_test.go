package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/binopt-server/internal/config"
	"github.com/binopt-server/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, userID uint, username string) string {
	t.Helper()
	claims := &service.JWTClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "binopt-server",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newAuthRouter(gotID *uint, gotName *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	authService := service.NewAuthService(nil,
		config.JWTConfig{Secret: testSecret, ExpireHours: 1},
		config.TradingConfig{},
	)

	router := gin.New()
	router.GET("/secure", AuthMiddleware(authService), func(c *gin.Context) {
		*gotID = GetUserID(c)
		*gotName = GetUsername(c)
		c.Status(http.StatusOK)
	})
	return router
}

func TestAuthMiddlewarePopulatesContext(t *testing.T) {
	var gotID uint
	var gotName string
	router := newAuthRouter(&gotID, &gotName)

	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, 7, "alice"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 7, gotID)
	assert.Equal(t, "alice", gotName)
}

func TestAuthMiddlewareRejections(t *testing.T) {
	var gotID uint
	var gotName string
	router := newAuthRouter(&gotID, &gotName)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Token abc"},
		{"garbage token", "Bearer not-a-token"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", 7, "alice")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/secure", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestGetUserIDMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Zero(t, GetUserID(c))
	assert.Empty(t, GetUsername(c))
}
