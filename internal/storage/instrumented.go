package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

// instrumentedStore считает вызовы хранилища и их длительность.
type instrumentedStore struct {
	next    domain.RecordStore
	metrics *metrics.StoreMetrics
	now     func() time.Time
}

// Instrument оборачивает RecordStore метриками Prometheus.
func Instrument(next domain.RecordStore, m *metrics.StoreMetrics) domain.RecordStore {
	if m == nil {
		return next
	}
	return &instrumentedStore{next: next, metrics: m, now: time.Now}
}

func (s *instrumentedStore) observe(collection, op string, start time.Time, err error) {
	s.metrics.ObserveCall(collection, op, resultLabel(err), s.now().Sub(start))
}

func (s *instrumentedStore) Create(ctx context.Context, collection string, fields map[string]any) (domain.Record, error) {
	start := s.now()
	rec, err := s.next.Create(ctx, collection, fields)
	s.observe(collection, "create", start, err)
	return rec, err
}

func (s *instrumentedStore) GetOne(ctx context.Context, collection, id string, opts domain.GetOptions) (domain.Record, error) {
	start := s.now()
	rec, err := s.next.GetOne(ctx, collection, id, opts)
	s.observe(collection, "getOne", start, err)
	return rec, err
}

func (s *instrumentedStore) GetFullList(ctx context.Context, collection string, opts domain.ListOptions) ([]domain.Record, error) {
	start := s.now()
	recs, err := s.next.GetFullList(ctx, collection, opts)
	s.observe(collection, "getFullList", start, err)
	return recs, err
}

func (s *instrumentedStore) GetList(ctx context.Context, collection string, page, perPage int, opts domain.ListOptions) (domain.RecordPage, error) {
	start := s.now()
	res, err := s.next.GetList(ctx, collection, page, perPage, opts)
	s.observe(collection, "getList", start, err)
	return res, err
}

func (s *instrumentedStore) Update(ctx context.Context, collection, id string, fields map[string]any) (domain.Record, error) {
	start := s.now()
	rec, err := s.next.Update(ctx, collection, id, fields)
	s.observe(collection, "update", start, err)
	return rec, err
}

func (s *instrumentedStore) Delete(ctx context.Context, collection, id string) error {
	start := s.now()
	err := s.next.Delete(ctx, collection, id)
	s.observe(collection, "delete", start, err)
	return err
}

func (s *instrumentedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, domain.ErrCircuitOpen):
		return metrics.ResultCircuitOpen
	case errors.Is(err, domain.ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, domain.ErrInvalidFilter),
		errors.Is(err, domain.ErrInvalidSort),
		errors.Is(err, domain.ErrRecordConflict),
		errors.Is(err, domain.ErrRecordRejected):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
