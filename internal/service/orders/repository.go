package orders

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

// Имена операций для логов, метрик и WriteError.Op.
const (
	opCreateOrder       = "create_order"
	opFetchOrder        = "fetch_order"
	opReplaceOrderItems = "replace_order_items"
	opUpdateOrder       = "update_order"
	opListOrders        = "list_orders"
	opLookupCustomer    = "lookup_customer"
	opListCustomers     = "list_all_customers"
	opListDistinct      = "list_distinct"
)

// DefaultSort — сортировка списка заказов по умолчанию.
const DefaultSort = "-bill_no"

// distinctPageSize — сколько записей читает ListDistinct.
const distinctPageSize = 100

// Repository переводит заказы в записи коллекций хранилища и обратно.
// Собственного изменяемого состояния не держит: всё живёт в хранилище.
type Repository struct {
	store           domain.RecordStore
	outbox          domain.OutboxRepository
	logger          *log.Entry
	metrics         *metrics.RepositoryMetrics
	itemConcurrency int
	now             func() time.Time
}

// Option настраивает Repository.
type Option func(*Repository)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics включает метрики операций.
func WithMetrics(m *metrics.RepositoryMetrics) Option {
	return func(r *Repository) {
		r.metrics = m
	}
}

// WithOutbox включает публикацию событий заказов через outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(r *Repository) {
		r.outbox = outbox
	}
}

// WithItemConcurrency разрешает создавать позиции параллельно, не более n одновременно.
// n <= 1 означает последовательную запись.
func WithItemConcurrency(n int) Option {
	return func(r *Repository) {
		if n < 1 {
			n = 1
		}
		r.itemConcurrency = n
	}
}

// NewRepository создаёт репозиторий поверх хранилища.
func NewRepository(store domain.RecordStore, opts ...Option) *Repository {
	r := &Repository{
		store:           store,
		logger:          log.New().WithField("component", "order-repository"),
		itemConcurrency: 1,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Succeeded сводит результат многошаговой записи к булеву флагу.
func Succeeded(err error) bool {
	return err == nil
}

func (r *Repository) observe(op string, start time.Time, err error) {
	r.metrics.ObserveOperation(op, resultOf(err), r.now().Sub(start))
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, domain.ErrPartialFailure):
		return metrics.ResultPartial
	case errors.Is(err, domain.ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, domain.ErrItemsRequired),
		errors.Is(err, domain.ErrOrderIDRequired),
		errors.Is(err, domain.ErrCustomerIDRequired),
		errors.Is(err, domain.ErrInvalidField):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
