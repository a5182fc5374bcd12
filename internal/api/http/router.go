package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
	"github.com/vladislavdragonenkov/orderdesk/internal/session"
)

// OrderService — операции репозитория заказов, доступные через HTTP.
type OrderService interface {
	CreateOrder(ctx context.Context, draft domain.Order, customerName string) (orders.CreateResult, error)
	FetchOrder(ctx context.Context, orderID string) (domain.Order, error)
	ReplaceOrderItems(ctx context.Context, orderID string, items []domain.LineItem) ([]string, error)
	UpdateOrder(ctx context.Context, orderID string, patch domain.HeaderPatch, items []domain.LineItem) (orders.UpdateResult, error)
	ListOrders(ctx context.Context, sortKey string) ([]domain.Order, error)
	LookupCustomer(ctx context.Context, customerID string) (domain.Customer, error)
	ListAllCustomers(ctx context.Context) ([]domain.Customer, error)
	ListDistinct(ctx context.Context, field string) ([]string, error)
}

var _ OrderService = (*orders.Repository)(nil)

// Options — необязательные части HTTP-слоя.
type Options struct {
	Logger *log.Entry
	// RateLimitRPS <= 0 отключает лимит запросов.
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string
	// Session включает проверку входа для /api и маршруты /session.
	Session *session.UserSession
	// SessionToken — секрет, который предъявляют при входе.
	SessionToken string
	// OrdersCache хранит последний прочитанный список заказов.
	OrdersCache *session.OrdersCache
}

// NewRouter собирает gin.Engine с API заказов.
func NewRouter(svc OrderService, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "http")
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger), CORS(opts.AllowedOrigins))
	if opts.RateLimitRPS > 0 {
		router.Use(RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))
	}

	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	api := router.Group("/api")
	if opts.Session != nil {
		sh := &sessionHandler{
			session: opts.Session,
			token:   opts.SessionToken,
			cache:   opts.OrdersCache,
			logger:  logger,
			now:     func() time.Time { return time.Now().UTC() },
		}
		sh.Register(router)
		api.Use(session.Guard(opts.Session))
	}

	h := &Handler{svc: svc, cache: opts.OrdersCache, logger: logger}
	h.Register(api)
	return router
}
