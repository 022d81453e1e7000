package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/campus-borrow-backend/internal/auth/authtest"
)

func newTestRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", mw, func(c *gin.Context) {
		c.String(http.StatusOK, GetUserEmail(c))
	})
	return r
}

func call(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const secret = "secret"

func TestAuthRequired(t *testing.T) {
	m := NewJWTManager(secret)
	token := authtest.Token(t, secret, "u-1", "student@campus.edu", RoleStudent, time.Minute)

	r := newTestRouter(AuthRequired(m))

	assert.Equal(t, http.StatusUnauthorized, call(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(r, "Token "+token).Code)
	assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer not-a-jwt").Code)

	w := call(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student@campus.edu", w.Body.String())
}

func TestOptionalAuth(t *testing.T) {
	m := NewJWTManager(secret)
	token := authtest.Token(t, secret, "u-1", "student@campus.edu", RoleStudent, time.Minute)

	r := newTestRouter(OptionalAuth(m))

	w := call(r, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String(), "anonymous callers carry no email")

	w = call(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student@campus.edu", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer forged").Code)
}

func TestExpiredTokenRejected(t *testing.T) {
	m := NewJWTManager(secret)
	token := authtest.Token(t, secret, "u-1", "student@campus.edu", RoleStudent, -time.Minute)

	_, err := m.ParseAndValidate(token)
	assert.Error(t, err)

	token = authtest.Token(t, "other-secret", "u-1", "student@campus.edu", RoleStudent, time.Minute)
	_, err = m.ParseAndValidate(token)
	assert.Error(t, err)

	token = authtest.Token(t, secret, "u-1", "student@campus.edu", "", time.Minute)
	claims, err := m.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, RoleStudent, claims.Role)
}

func TestRequireStaff(t *testing.T) {
	m := NewJWTManager(secret)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", AuthRequired(m), RequireStaff(), func(c *gin.Context) {
		c.String(http.StatusOK, GetUserRole(c))
	})

	student := authtest.Token(t, secret, "u-1", "student@campus.edu", RoleStudent, time.Minute)
	staff := authtest.Token(t, secret, "u-2", "desk@campus.edu", RoleStaff, time.Minute)

	assert.Equal(t, http.StatusForbidden, call(r, "Bearer "+student).Code)

	w := call(r, "Bearer "+staff)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, RoleStaff, w.Body.String())
}
