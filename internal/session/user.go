package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// User — данные вошедшего пользователя.
type User struct {
	ID        string            `json:"id,omitempty"`
	Name      string            `json:"name,omitempty"`
	Email     string            `json:"email"`
	Timestamp time.Time         `json:"timestamp"`
	Claims    map[string]string `json:"claims,omitempty"`
}

// UserSession хранит состояние входа. Заполняется внешним auth-слоем.
type UserSession struct {
	mu       sync.RWMutex
	user     *User
	loggedIn bool
}

// NewUserSession создаёт сессию без пользователя.
func NewUserSession() *UserSession {
	return &UserSession{}
}

// SetUser запоминает пользователя, email и момент входа.
func (s *UserSession) SetUser(user User, email string, loggedIn bool, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = email
	user.Timestamp = ts
	if user.Claims != nil {
		claims := make(map[string]string, len(user.Claims))
		for k, v := range user.Claims {
			claims[k] = v
		}
		user.Claims = claims
	}
	s.user = &user
	s.loggedIn = loggedIn
}

// RemoveUser сбрасывает сессию.
func (s *UserSession) RemoveUser() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	s.loggedIn = false
}

func (s *UserSession) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loggedIn
}

// User возвращает копию пользователя; false, если пользователь не задан.
func (s *UserSession) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// Guard пропускает запрос только при активной сессии, иначе отвечает 401.
func Guard(s *UserSession) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s == nil || !s.IsLoggedIn() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		if user, ok := s.User(); ok {
			c.Set("session_user", user)
		}
		c.Next()
	}
}
