package orders

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// FetchOrder читает заказ одним запросом с раскрытием позиций.
func (r *Repository) FetchOrder(ctx context.Context, orderID string) (order domain.Order, err error) {
	start := r.now()
	defer func() { r.observe(opFetchOrder, start, err) }()

	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%s: %w", opFetchOrder, domain.ErrOrderIDRequired)
	}

	rec, err := r.store.GetOne(ctx, domain.CollectionOrders, orderID, domain.GetOptions{
		Expand: []string{domain.FieldOrderItems},
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s %s: %w", opFetchOrder, orderID, err)
	}
	return decodeOrder(rec), nil
}

// ListOrders возвращает все заказы, отсортированные на стороне хранилища.
// Пустой sortKey означает DefaultSort. Результат не ограничен по размеру.
func (r *Repository) ListOrders(ctx context.Context, sortKey string) (orders []domain.Order, err error) {
	start := r.now()
	defer func() { r.observe(opListOrders, start, err) }()

	if sortKey == "" {
		sortKey = DefaultSort
	}

	recs, err := r.store.GetFullList(ctx, domain.CollectionOrders, domain.ListOptions{Sort: sortKey})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opListOrders, err)
	}

	orders = make([]domain.Order, 0, len(recs))
	for _, rec := range recs {
		orders = append(orders, decodeOrder(rec))
	}
	return orders, nil
}

// LookupCustomer возвращает имя и адрес клиента.
func (r *Repository) LookupCustomer(ctx context.Context, customerID string) (customer domain.Customer, err error) {
	start := r.now()
	defer func() { r.observe(opLookupCustomer, start, err) }()

	if customerID == "" {
		return domain.Customer{}, fmt.Errorf("%s: %w", opLookupCustomer, domain.ErrCustomerIDRequired)
	}

	rec, err := r.store.GetOne(ctx, domain.CollectionCustomers, customerID, domain.GetOptions{})
	if err != nil {
		return domain.Customer{}, fmt.Errorf("%s %s: %w", opLookupCustomer, customerID, err)
	}
	return decodeCustomer(rec), nil
}

// ListAllCustomers возвращает весь справочник клиентов.
func (r *Repository) ListAllCustomers(ctx context.Context) (customers []domain.Customer, err error) {
	start := r.now()
	defer func() { r.observe(opListCustomers, start, err) }()

	recs, err := r.store.GetFullList(ctx, domain.CollectionCustomers, domain.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opListCustomers, err)
	}

	customers = make([]domain.Customer, 0, len(recs))
	for _, rec := range recs {
		customers = append(customers, decodeCustomer(rec))
	}
	return customers, nil
}

// ListDistinct читает до 100 заказов с непустым полем и возвращает его значения.
// Повторы не схлопываются.
func (r *Repository) ListDistinct(ctx context.Context, field string) (values []string, err error) {
	start := r.now()
	defer func() { r.observe(opListDistinct, start, err) }()

	if err := domain.ValidateField(field); err != nil {
		return nil, fmt.Errorf("%s: %w", opListDistinct, err)
	}

	page, err := r.store.GetList(ctx, domain.CollectionOrders, 1, distinctPageSize, domain.ListOptions{
		Filter: domain.FieldNotEmpty(field),
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", opListDistinct, field, err)
	}

	values = make([]string, 0, len(page.Items))
	for _, rec := range page.Items {
		values = append(values, rec.String(field))
	}
	return values, nil
}

// ListCategories возвращает значения cust_category.
func (r *Repository) ListCategories(ctx context.Context) ([]string, error) {
	return r.ListDistinct(ctx, domain.FieldCustCategory)
}

// ListActiveStatuses возвращает значения cust_active_status.
func (r *Repository) ListActiveStatuses(ctx context.Context) ([]string, error) {
	return r.ListDistinct(ctx, domain.FieldCustActiveStatus)
}
