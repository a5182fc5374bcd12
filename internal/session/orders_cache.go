package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// OrdersKey — ключ списка заказов в Storage.
const OrdersKey = "orders"

// OrdersCache — кэш списка заказов клиента поверх Storage.
// Передаётся явно тем, кто его использует; глобального экземпляра нет.
type OrdersCache struct {
	mu      sync.Mutex
	storage Storage
	orders  []domain.Order
}

// NewOrdersCache создаёт кэш; nil storage заменяется in-memory хранилищем.
func NewOrdersCache(storage Storage) *OrdersCache {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &OrdersCache{storage: storage, orders: []domain.Order{}}
}

// Save заменяет содержимое кэша; nil сохраняется как пустой список.
func (c *OrdersCache) Save(orders []domain.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if orders == nil {
		orders = []domain.Order{}
	}
	c.orders = append([]domain.Order(nil), orders...)
	return c.persistLocked()
}

// Push добавляет заказ в начало списка.
func (c *OrdersCache) Push(order domain.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.orders = append([]domain.Order{order}, c.orders...)
	return c.persistLocked()
}

// Load перечитывает список из Storage; отсутствующий ключ даёт пустой список.
func (c *OrdersCache) Load() ([]domain.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.storage.Get(OrdersKey)
	if !ok || raw == "" {
		c.orders = []domain.Order{}
		return []domain.Order{}, nil
	}

	var orders []domain.Order
	if err := json.Unmarshal([]byte(raw), &orders); err != nil {
		return nil, fmt.Errorf("decode cached orders: %w", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.orders = orders
	return append([]domain.Order(nil), orders...), nil
}

// Clear удаляет список из Storage.
func (c *OrdersCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.storage.Remove(OrdersKey)
	c.orders = []domain.Order{}
}

// Len возвращает число заказов в кэше без обращения к Storage.
func (c *OrdersCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.orders)
}

func (c *OrdersCache) persistLocked() error {
	raw, err := json.Marshal(c.orders)
	if err != nil {
		return fmt.Errorf("encode cached orders: %w", err)
	}
	c.storage.Set(OrdersKey, string(raw))
	return nil
}
