package domain

import (
	"context"
	"time"
)

// RecordStore описывает протокол коллекций удалённого хранилища.
// Каждый вызов надёжен сам по себе, транзакций между вызовами нет.
type RecordStore interface {
	// Create создаёт запись; идентификатор назначает хранилище.
	Create(ctx context.Context, collection string, fields map[string]any) (Record, error)
	// GetOne возвращает запись или ErrNotFound.
	GetOne(ctx context.Context, collection, id string, opts GetOptions) (Record, error)
	// GetFullList возвращает все записи коллекции с учётом сортировки и фильтра.
	GetFullList(ctx context.Context, collection string, opts ListOptions) ([]Record, error)
	// GetList возвращает страницу записей; page начинается с 1.
	GetList(ctx context.Context, collection string, page, perPage int, opts ListOptions) (RecordPage, error)
	// Update применяет частичное обновление полей и возвращает запись целиком.
	Update(ctx context.Context, collection, id string, fields map[string]any) (Record, error)
	// Delete удаляет запись безвозвратно.
	Delete(ctx context.Context, collection, id string) error
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
}

// OutboxPublisher публикует события из outbox; должен быть идемпотентным.
type OutboxPublisher interface {
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// Типы событий заказа.
const (
	AggregateOrder = "order"

	EventOrderCreated       = "order.created"
	EventOrderUpdated       = "order.updated"
	EventOrderItemsReplaced = "order.items_replaced"
)
