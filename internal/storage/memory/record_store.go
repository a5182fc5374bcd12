package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

const (
	defaultPerPage = 30
	maxPerPage     = 500
)

// Op — имя операции протокола хранилища, используется для журнала вызовов и инъекции сбоев.
type Op string

const (
	OpCreate      Op = "create"
	OpGetOne      Op = "getOne"
	OpGetFullList Op = "getFullList"
	OpGetList     Op = "getList"
	OpUpdate      Op = "update"
	OpDelete      Op = "delete"
)

// Call — запись журнала вызовов.
type Call struct {
	Op         Op
	Collection string
	ID         string
}

type storedRecord struct {
	rec domain.Record
	seq int64
}

type fault struct {
	op         Op
	collection string
	nth        int
	err        error
}

// RecordStore — in-memory реализация протокола коллекций для локальной разработки и тестов.
type RecordStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*storedRecord
	relations   domain.Relations
	seq         int64
	calls       []Call
	counters    map[string]int
	faults      []fault
	now         func() time.Time
}

// Option настраивает RecordStore.
type Option func(*RecordStore)

// WithRelations подменяет схему связей для expand.
func WithRelations(rel domain.Relations) Option {
	return func(s *RecordStore) {
		s.relations = rel
	}
}

// WithClock задаёт источник времени (для детерминированных тестов).
func WithClock(now func() time.Time) Option {
	return func(s *RecordStore) {
		s.now = now
	}
}

// NewRecordStore создаёт пустое хранилище.
func NewRecordStore(opts ...Option) *RecordStore {
	s := &RecordStore{
		collections: make(map[string]map[string]*storedRecord),
		relations:   domain.DefaultRelations(),
		counters:    make(map[string]int),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed кладёт запись с заданным идентификатором в обход журнала вызовов (справочные данные).
func (s *RecordStore) Seed(collection, id string, fields map[string]any) domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(collection, id, fields)
}

// FailOn заставляет nth-й (с 1) вызов op по коллекции вернуть err.
// Пустая коллекция означает любую коллекцию.
func (s *RecordStore) FailOn(op Op, collection string, nth int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		err = domain.ErrStoreUnavailable
	}
	s.faults = append(s.faults, fault{op: op, collection: collection, nth: nth, err: err})
}

// Calls возвращает копию журнала вызовов.
func (s *RecordStore) Calls() []Call {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// ResetCalls очищает журнал вызовов и счётчики сбоев.
func (s *RecordStore) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = nil
	s.counters = make(map[string]int)
}

// Count возвращает число записей в коллекции.
func (s *RecordStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.collections[collection])
}

func (s *RecordStore) Create(_ context.Context, collection string, fields map[string]any) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enterLocked(OpCreate, collection, ""); err != nil {
		return domain.Record{}, err
	}

	id := uuid.NewString()
	if v, ok := fields["id"].(string); ok && v != "" {
		if _, exists := s.collections[collection][v]; exists {
			return domain.Record{}, fmt.Errorf("create %s/%s: %w", collection, v, domain.ErrRecordConflict)
		}
		id = v
	}
	s.calls[len(s.calls)-1].ID = id

	return cloneRecord(s.insertLocked(collection, id, fields)), nil
}

func (s *RecordStore) GetOne(_ context.Context, collection, id string, opts domain.GetOptions) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enterLocked(OpGetOne, collection, id); err != nil {
		return domain.Record{}, err
	}

	stored, ok := s.collections[collection][id]
	if !ok {
		return domain.Record{}, fmt.Errorf("get %s/%s: %w", collection, id, domain.ErrNotFound)
	}

	rec := cloneRecord(stored.rec)
	s.expandLocked(&rec, opts.Expand)
	return rec, nil
}

func (s *RecordStore) GetFullList(_ context.Context, collection string, opts domain.ListOptions) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enterLocked(OpGetFullList, collection, ""); err != nil {
		return nil, err
	}
	return s.selectLocked(collection, opts)
}

func (s *RecordStore) GetList(_ context.Context, collection string, page, perPage int, opts domain.ListOptions) (domain.RecordPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enterLocked(OpGetList, collection, ""); err != nil {
		return domain.RecordPage{}, err
	}

	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	all, err := s.selectLocked(collection, opts)
	if err != nil {
		return domain.RecordPage{}, err
	}

	result := domain.RecordPage{Page: page, PerPage: perPage, TotalItems: len(all)}
	start := (page - 1) * perPage
	if start >= len(all) {
		result.Items = []domain.Record{}
		return result, nil
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	result.Items = all[start:end]
	return result, nil
}

func (s *RecordStore) Update(_ context.Context, collection, id string, fields map[string]any) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enterLocked(OpUpdate, collection, id); err != nil {
		return domain.Record{}, err
	}

	stored, ok := s.collections[collection][id]
	if !ok {
		return domain.Record{}, fmt.Errorf("update %s/%s: %w", collection, id, domain.ErrNotFound)
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		stored.rec.Fields[k] = cloneValue(v)
	}
	stored.rec.Updated = s.now()
	return cloneRecord(stored.rec), nil
}

func (s *RecordStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enterLocked(OpDelete, collection, id); err != nil {
		return err
	}

	if _, ok := s.collections[collection][id]; !ok {
		return fmt.Errorf("delete %s/%s: %w", collection, id, domain.ErrNotFound)
	}
	delete(s.collections[collection], id)
	return nil
}

func (s *RecordStore) Ping(context.Context) error {
	return nil
}

// enterLocked журналирует вызов и применяет сконфигурированные сбои.
func (s *RecordStore) enterLocked(op Op, collection, id string) error {
	s.calls = append(s.calls, Call{Op: op, Collection: collection, ID: id})

	s.counters[string(op)+"|"+collection]++
	s.counters[string(op)+"|"]++
	for _, f := range s.faults {
		if f.op != op || (f.collection != "" && f.collection != collection) {
			continue
		}
		if s.counters[string(op)+"|"+f.collection] == f.nth {
			return fmt.Errorf("%s %s: %w", op, collection, f.err)
		}
	}
	return nil
}

func (s *RecordStore) insertLocked(collection, id string, fields map[string]any) domain.Record {
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]*storedRecord)
		s.collections[collection] = coll
	}

	now := s.now()
	rec := domain.Record{
		ID:         id,
		Collection: collection,
		Fields:     make(map[string]any, len(fields)),
		Created:    now,
		Updated:    now,
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		rec.Fields[k] = cloneValue(v)
	}

	s.seq++
	coll[id] = &storedRecord{rec: rec, seq: s.seq}
	return rec
}

func (s *RecordStore) selectLocked(collection string, opts domain.ListOptions) ([]domain.Record, error) {
	conds, err := domain.ParseFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	sortFields, err := domain.ParseSort(opts.Sort)
	if err != nil {
		return nil, err
	}

	matched := make([]*storedRecord, 0, len(s.collections[collection]))
	for _, stored := range s.collections[collection] {
		if matchAll(stored.rec, conds) {
			matched = append(matched, stored)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		for _, sf := range sortFields {
			c := compareValues(matched[i].rec.String(sf.Field), matched[j].rec.String(sf.Field))
			if c == 0 {
				continue
			}
			if sf.Desc {
				return c > 0
			}
			return c < 0
		}
		return matched[i].seq < matched[j].seq
	})

	out := make([]domain.Record, 0, len(matched))
	for _, stored := range matched {
		out = append(out, cloneRecord(stored.rec))
	}
	return out, nil
}

func (s *RecordStore) expandLocked(rec *domain.Record, expand []string) {
	for _, field := range expand {
		target, ok := s.relations.Target(rec.Collection, field)
		if !ok {
			continue
		}
		raw, present := rec.Fields[field]
		if !present {
			continue
		}

		ids := rec.Strings(field)
		if _, single := raw.(string); single {
			if len(ids) == 0 {
				continue
			}
			if related, ok := s.collections[target][ids[0]]; ok {
				if rec.Expand == nil {
					rec.Expand = make(map[string]any)
				}
				rec.Expand[field] = cloneRecord(related.rec)
			}
			continue
		}

		related := make([]domain.Record, 0, len(ids))
		for _, id := range ids {
			if r, ok := s.collections[target][id]; ok {
				related = append(related, cloneRecord(r.rec))
			}
		}
		if rec.Expand == nil {
			rec.Expand = make(map[string]any)
		}
		rec.Expand[field] = related
	}
}

func matchAll(rec domain.Record, conds []domain.FilterCondition) bool {
	for _, c := range conds {
		if !c.Match(rec.String(c.Field)) {
			return false
		}
	}
	return true
}

// compareValues сравнивает числа численно, остальное — лексикографически.
func compareValues(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cloneRecord(rec domain.Record) domain.Record {
	out := rec
	out.Fields = make(map[string]any, len(rec.Fields))
	for k, v := range rec.Fields {
		out.Fields[k] = cloneValue(v)
	}
	out.Expand = nil
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []string:
		c := make([]string, len(t))
		copy(c, t)
		return c
	case []any:
		c := make([]any, len(t))
		copy(c, t)
		return c
	default:
		return v
	}
}

var _ domain.RecordStore = (*RecordStore)(nil)
