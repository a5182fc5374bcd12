package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

// CircuitState — состояние circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker — circuit breaker для вызовов хранилища. Повторов не делает:
// пока цепь разомкнута, вызовы сразу завершаются ErrStoreUnavailable.
type Breaker struct {
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time
	logger       *log.Entry
	metrics      *metrics.StoreMetrics

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       CircuitState
	// trialInFlight — в half-open до хранилища допускается один пробный вызов.
	trialInFlight bool
}

// NewBreaker создаёт breaker, размыкающийся после maxFailures сбоев подряд.
func NewBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry, m *metrics.StoreMetrics) *Breaker {
	if logger == nil {
		logger = log.WithField("component", "store-breaker")
	}
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}

	return &Breaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		logger:       logger,
		metrics:      m,
		state:        CircuitClosed,
	}
}

// State возвращает текущее состояние.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute выполняет fn через breaker. Сбоем считаются только ошибки недоступности хранилища.
func (b *Breaker) Execute(operation string, fn func() error) error {
	trial, err := b.before(operation)
	if err != nil {
		return err
	}

	err = fn()
	b.after(operation, trial, err)
	return err
}

// before решает, пропускать ли вызов; trial=true для пробного вызова в half-open.
func (b *Breaker) before(operation string) (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		return false, nil
	case CircuitOpen:
		if b.now().Sub(b.lastFailure) <= b.resetTimeout {
			return false, circuitOpenError(operation)
		}
		b.setStateLocked(CircuitHalfOpen)
		b.logger.WithField("operation", operation).Info("circuit breaker half-open")
	}

	if b.trialInFlight {
		return false, circuitOpenError(operation)
	}
	b.trialInFlight = true
	return true, nil
}

func circuitOpenError(operation string) error {
	return fmt.Errorf("%s: %w: %w", operation, domain.ErrStoreUnavailable, domain.ErrCircuitOpen)
}

func (b *Breaker) after(operation string, trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trialInFlight = false
	}

	if isOutage(err) {
		b.failures++
		b.lastFailure = b.now()
		if b.state == CircuitHalfOpen || b.failures >= b.maxFailures {
			if b.state != CircuitOpen {
				b.logger.WithFields(log.Fields{
					"operation": operation,
					"failures":  b.failures,
				}).Warn("circuit breaker opened")
			}
			b.setStateLocked(CircuitOpen)
		}
		return
	}

	if b.state == CircuitHalfOpen {
		b.logger.WithField("operation", operation).Info("circuit breaker closed")
	}
	b.failures = 0
	b.setStateLocked(CircuitClosed)
}

func (b *Breaker) setStateLocked(state CircuitState) {
	b.state = state
	b.metrics.SetCircuitState(int(state))
}

// isOutage отделяет сбои хранилища от штатных ответов (not found, конфликт, ошибка фильтра).
func isOutage(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, domain.ErrStoreUnavailable)
}

// breakerStore оборачивает RecordStore circuit breaker'ом.
type breakerStore struct {
	next    domain.RecordStore
	breaker *Breaker
}

// WithBreaker возвращает RecordStore, защищённый breaker'ом.
func WithBreaker(next domain.RecordStore, breaker *Breaker) domain.RecordStore {
	return &breakerStore{next: next, breaker: breaker}
}

func (s *breakerStore) Create(ctx context.Context, collection string, fields map[string]any) (rec domain.Record, err error) {
	err = s.breaker.Execute("create", func() error {
		rec, err = s.next.Create(ctx, collection, fields)
		return err
	})
	return rec, err
}

func (s *breakerStore) GetOne(ctx context.Context, collection, id string, opts domain.GetOptions) (rec domain.Record, err error) {
	err = s.breaker.Execute("getOne", func() error {
		rec, err = s.next.GetOne(ctx, collection, id, opts)
		return err
	})
	return rec, err
}

func (s *breakerStore) GetFullList(ctx context.Context, collection string, opts domain.ListOptions) (recs []domain.Record, err error) {
	err = s.breaker.Execute("getFullList", func() error {
		recs, err = s.next.GetFullList(ctx, collection, opts)
		return err
	})
	return recs, err
}

func (s *breakerStore) GetList(ctx context.Context, collection string, page, perPage int, opts domain.ListOptions) (res domain.RecordPage, err error) {
	err = s.breaker.Execute("getList", func() error {
		res, err = s.next.GetList(ctx, collection, page, perPage, opts)
		return err
	})
	return res, err
}

func (s *breakerStore) Update(ctx context.Context, collection, id string, fields map[string]any) (rec domain.Record, err error) {
	err = s.breaker.Execute("update", func() error {
		rec, err = s.next.Update(ctx, collection, id, fields)
		return err
	})
	return rec, err
}

func (s *breakerStore) Delete(ctx context.Context, collection, id string) error {
	return s.breaker.Execute("delete", func() error {
		return s.next.Delete(ctx, collection, id)
	})
}

// Ping идёт мимо breaker, чтобы health-проверка видела реальное состояние хранилища.
func (s *breakerStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}
