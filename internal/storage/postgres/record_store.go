package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

const (
	defaultPerPage = 30
	maxPerPage     = 500
)

// RecordStore хранит коллекции в таблице records (JSONB) и реализует протокол коллекций.
// Каждый вызов — отдельный запрос, транзакций между вызовами нет.
type RecordStore struct {
	db        *sql.DB
	relations domain.Relations
	logger    *log.Entry
}

// RecordStoreOption настраивает RecordStore.
type RecordStoreOption func(*RecordStore)

// WithRelations подменяет схему связей для expand.
func WithRelations(rel domain.Relations) RecordStoreOption {
	return func(s *RecordStore) {
		s.relations = rel
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) RecordStoreOption {
	return func(s *RecordStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRecordStore создаёт RecordStore поверх подключения.
func NewRecordStore(store *Store, opts ...RecordStoreOption) *RecordStore {
	s := &RecordStore{
		db:        store.DB(),
		relations: domain.DefaultRelations(),
		logger:    log.New().WithField("component", "postgres-records"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RecordStore) Create(ctx context.Context, collection string, fields map[string]any) (domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	id := uuid.NewString()
	if v, ok := fields["id"].(string); ok && v != "" {
		id = v
	}

	data, err := encodeFields(fields)
	if err != nil {
		return domain.Record{}, fmt.Errorf("create %s: %w", collection, err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO records (collection, id, data, created, updated)
		VALUES ($1, $2, $3::jsonb, NOW(), NOW())
		RETURNING id, data, created, updated
	`, collection, id, string(data))

	rec, err := scanRecord(collection, row)
	if err != nil {
		return domain.Record{}, wrapErr("create "+collection, err)
	}
	return rec, nil
}

func (s *RecordStore) GetOne(ctx context.Context, collection, id string, opts domain.GetOptions) (domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, data, created, updated
		FROM records
		WHERE collection = $1 AND id = $2
	`, collection, id)

	rec, err := scanRecord(collection, row)
	if err != nil {
		return domain.Record{}, wrapErr(fmt.Sprintf("get %s/%s", collection, id), err)
	}

	if err := s.expand(ctx, &rec, opts.Expand); err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

func (s *RecordStore) GetFullList(ctx context.Context, collection string, opts domain.ListOptions) ([]domain.Record, error) {
	q, err := newSelectQuery(collection, opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query, args := q.build()
	return s.query(ctx, collection, query, args)
}

func (s *RecordStore) GetList(ctx context.Context, collection string, page, perPage int, opts domain.ListOptions) (domain.RecordPage, error) {
	q, err := newSelectQuery(collection, opts)
	if err != nil {
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
	q.limit = perPage
	q.offset = (page - 1) * perPage

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	result := domain.RecordPage{Page: page, PerPage: perPage}
	countQuery, countArgs := q.count()
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&result.TotalItems); err != nil {
		return domain.RecordPage{}, wrapErr("count "+collection, err)
	}

	query, args := q.build()
	items, err := s.query(ctx, collection, query, args)
	if err != nil {
		return domain.RecordPage{}, err
	}
	result.Items = items
	return result, nil
}

// Update сливает поля с текущими (jsonb ||) и возвращает запись целиком.
func (s *RecordStore) Update(ctx context.Context, collection, id string, fields map[string]any) (domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := encodeFields(fields)
	if err != nil {
		return domain.Record{}, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE records
		SET data = data || $3::jsonb,
		    updated = NOW()
		WHERE collection = $1 AND id = $2
		RETURNING id, data, created, updated
	`, collection, id, string(data))

	rec, err := scanRecord(collection, row)
	if err != nil {
		return domain.Record{}, wrapErr(fmt.Sprintf("update %s/%s", collection, id), err)
	}
	return rec, nil
}

func (s *RecordStore) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	op := fmt.Sprintf("delete %s/%s", collection, id)
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return wrapErr(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapErr(op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

func (s *RecordStore) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()

	if err := s.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping postgres: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RecordStore) query(ctx context.Context, collection, query string, args []any) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list "+collection, err)
	}
	defer rows.Close()

	out := make([]domain.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(collection, rows)
		if err != nil {
			return nil, wrapErr("scan "+collection, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate "+collection, err)
	}
	return out, nil
}

// expand дочитывает связанные записи одним запросом на поле.
// Отсутствующие связанные записи пропускаются, порядок ссылок сохраняется.
func (s *RecordStore) expand(ctx context.Context, rec *domain.Record, fields []string) error {
	for _, field := range fields {
		target, ok := s.relations.Target(rec.Collection, field)
		if !ok {
			continue
		}
		raw, present := rec.Fields[field]
		if !present {
			continue
		}
		ids := rec.Strings(field)

		related, err := s.loadByIDs(ctx, target, ids)
		if err != nil {
			return err
		}

		if _, single := raw.(string); single {
			if len(ids) == 0 {
				continue
			}
			if r, ok := related[ids[0]]; ok {
				setExpand(rec, field, r)
			}
			continue
		}

		list := make([]domain.Record, 0, len(ids))
		for _, id := range ids {
			if r, ok := related[id]; ok {
				list = append(list, r)
			}
		}
		setExpand(rec, field, list)
	}
	return nil
}

func (s *RecordStore) loadByIDs(ctx context.Context, collection string, ids []string) (map[string]domain.Record, error) {
	out := make(map[string]domain.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data, created, updated
		FROM records
		WHERE collection = $1 AND id = ANY($2)
	`, collection, ids)
	if err != nil {
		return nil, wrapErr("expand "+collection, err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(collection, rows)
		if err != nil {
			return nil, wrapErr("expand "+collection, err)
		}
		out[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("expand "+collection, err)
	}
	return out, nil
}

func setExpand(rec *domain.Record, field string, v any) {
	if rec.Expand == nil {
		rec.Expand = make(map[string]any)
	}
	rec.Expand[field] = v
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(collection string, row rowScanner) (domain.Record, error) {
	var (
		rec     = domain.Record{Collection: collection}
		data    []byte
		created time.Time
		updated time.Time
	)
	if err := row.Scan(&rec.ID, &data, &created, &updated); err != nil {
		return domain.Record{}, err
	}

	fields, err := decodeFields(data)
	if err != nil {
		return domain.Record{}, err
	}
	rec.Fields = fields
	rec.Created = created.UTC()
	rec.Updated = updated.UTC()
	return rec, nil
}

func encodeFields(fields map[string]any) ([]byte, error) {
	clean := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "id" {
			continue
		}
		if err := domain.ValidateField(k); err != nil {
			return nil, err
		}
		clean[k] = v
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return data, nil
}

func decodeFields(data []byte) (map[string]any, error) {
	fields := make(map[string]any)
	if len(data) == 0 {
		return fields, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return fields, nil
}

// wrapErr классифицирует ошибку базы: нет строки — ErrNotFound, дубликат — ErrRecordConflict,
// остальное — ErrStoreUnavailable.
func wrapErr(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, domain.ErrRecordConflict)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ domain.RecordStore = (*RecordStore)(nil)
