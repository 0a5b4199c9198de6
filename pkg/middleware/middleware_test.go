package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Astemirdum/library-management/pkg/auth"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestJWTAuthentication(t *testing.T) {
	t.Parallel()
	tokens := auth.NewTokens("secret", time.Hour)
	userToken, err := tokens.Issue("u1", "u@example.com", auth.RoleUser)
	require.NoError(t, err)
	adminToken, err := tokens.Issue("a1", "a@example.com", auth.RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name         string
		header       string
		expectedCode int
		expectedBody string
	}{
		{
			name:         "no header",
			expectedCode: http.StatusUnauthorized,
			expectedBody: `{"message":"no authorization header"}`,
		},
		{
			name:         "not bearer",
			header:       "Basic abc",
			expectedCode: http.StatusUnauthorized,
			expectedBody: `{"message":"invalid authorization header"}`,
		},
		{
			name:         "bad token",
			header:       "Bearer abc",
			expectedCode: http.StatusUnauthorized,
			expectedBody: `{"message":"invalid or expired token"}`,
		},
		{
			name:         "user on admin route",
			header:       "Bearer " + userToken,
			expectedCode: http.StatusForbidden,
			expectedBody: `{"message":"insufficient permissions"}`,
		},
		{
			name:         "admin",
			header:       "Bearer " + adminToken,
			expectedCode: http.StatusOK,
			expectedBody: "a1",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := echo.New()
			e.GET("/admin", func(c echo.Context) error {
				p, _ := auth.FromContext(c.Request().Context())
				return c.String(http.StatusOK, p.UserID)
			}, JWTAuthentication(tokens), RequireRole(auth.RoleAdmin))

			r := httptest.NewRequest(http.MethodGet, "/admin", http.NoBody)
			if tt.header != "" {
				r.Header.Set(AuthorizationHeader, tt.header)
			}
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
			require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}
