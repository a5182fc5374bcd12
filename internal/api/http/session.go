package httpapi

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/session"
)

type loginRequest struct {
	Token string `json:"token" binding:"required"`
	Email string `json:"email" binding:"required"`
	Name  string `json:"name"`
}

type sessionResponse struct {
	LoggedIn bool          `json:"logged_in"`
	User     *session.User `json:"user,omitempty"`
}

// sessionHandler открывает и закрывает сессию оператора по общему токену.
type sessionHandler struct {
	session *session.UserSession
	token   string
	cache   *session.OrdersCache
	logger  *log.Entry
	now     func() time.Time
}

func (h *sessionHandler) Register(r gin.IRouter) {
	r.POST("/session", h.login)
	r.GET("/session", h.status)
	r.DELETE("/session", h.logout)
}

func (h *sessionHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if h.token == "" || subtle.ConstantTimeCompare([]byte(req.Token), []byte(h.token)) != 1 {
		h.logger.WithField("email", req.Email).Warn("session login rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Success: false, Error: "invalid session token"})
		return
	}

	h.session.SetUser(session.User{ID: uuid.NewString(), Name: req.Name}, req.Email, true, h.now())
	h.logger.WithField("email", req.Email).Info("session opened")
	h.status(c)
}

func (h *sessionHandler) status(c *gin.Context) {
	resp := sessionResponse{LoggedIn: h.session.IsLoggedIn()}
	if user, ok := h.session.User(); ok {
		resp.User = &user
	}
	c.JSON(http.StatusOK, resp)
}

// logout сбрасывает сессию и кэш заказов, прочитанных под ней.
func (h *sessionHandler) logout(c *gin.Context) {
	h.session.RemoveUser()
	if h.cache != nil {
		h.cache.Clear()
	}
	h.logger.Info("session closed")
	c.Status(http.StatusNoContent)
}
