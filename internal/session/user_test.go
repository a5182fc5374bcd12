package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/session"
)

func TestUserSession_Lifecycle(t *testing.T) {
	s := session.NewUserSession()
	require.False(t, s.IsLoggedIn())
	_, ok := s.User()
	require.False(t, ok)

	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.SetUser(session.User{ID: "u1", Name: "Operator"}, "op@example.com", true, ts)

	require.True(t, s.IsLoggedIn())
	user, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "op@example.com", user.Email)
	assert.Equal(t, ts, user.Timestamp)

	s.RemoveUser()
	require.False(t, s.IsLoggedIn())
	_, ok = s.User()
	require.False(t, ok)
}

func TestGuard(t *testing.T) {
	gin.SetMode(gin.TestMode)

	s := session.NewUserSession()
	router := gin.New()
	router.GET("/private", session.Guard(s), func(c *gin.Context) {
		user, _ := c.Get("session_user")
		c.JSON(http.StatusOK, gin.H{"email": user.(session.User).Email})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	s.SetUser(session.User{}, "op@example.com", true, time.Now())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "op@example.com")
}
