package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "smart-attendance"
)

func TestIssueAndParse(t *testing.T) {
	tok, err := Issue("camera-1", RoleRecognizer, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)

	claims, err := Parse(tok.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "camera-1", claims.Subject)
	assert.Equal(t, RoleRecognizer, claims.Role)
}

func TestParse_Rejects(t *testing.T) {
	tok, err := Issue("camera-1", RoleRecognizer, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	_, err = Parse(tok.AccessToken, "other-key", testIssuer)
	assert.Error(t, err)

	_, err = Parse(tok.AccessToken, testKey, "someone-else")
	assert.EqualError(t, err, "issuer mismatch")

	expired, err := Issue("camera-1", RoleRecognizer, testIssuer, testKey, -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired.AccessToken, testKey, testIssuer)
	assert.Error(t, err)
}

func TestIssue_RequiresKey(t *testing.T) {
	_, err := Issue("camera-1", RoleRecognizer, testIssuer, "", time.Hour)
	assert.Error(t, err)
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/start_class", RequireRole(testKey, testIssuer, RoleRecognizer), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sub": claims.Subject})
	})
	return r
}

func TestRequireRole(t *testing.T) {
	recognizer, err := Issue("camera-1", RoleRecognizer, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	operator, err := Issue("desk", RoleOperator, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong role", "Bearer " + operator.AccessToken, http.StatusForbidden},
		{"recognizer", "Bearer " + recognizer.AccessToken, http.StatusOK},
		{"lowercase scheme", "bearer " + recognizer.AccessToken, http.StatusOK},
	}
	r := newRouter()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/start_class", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
