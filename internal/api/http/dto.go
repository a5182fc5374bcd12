package httpapi

import (
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
)

type createOrderRequest struct {
	domain.Order
	CustomerName string `json:"customer_name"`
}

// order возвращает черновик без полей, которые назначает хранилище.
func (r createOrderRequest) order() domain.Order {
	draft := r.Order
	draft.ID = ""
	draft.ItemIDs = nil
	items := make([]domain.LineItem, len(draft.Items))
	for i, item := range draft.Items {
		item.ID = ""
		items[i] = item
	}
	draft.Items = items
	return draft
}

type updateOrderRequest struct {
	domain.HeaderPatch
	Items []domain.LineItem `json:"items"`
}

type replaceItemsRequest struct {
	Items []domain.LineItem `json:"items"`
}

type createOrderResponse struct {
	Success bool     `json:"success"`
	OrderID string   `json:"order_id"`
	BillNo  string   `json:"bill_no"`
	ItemIDs []string `json:"item_ids"`
}

type updateOrderResponse struct {
	Success bool `json:"success"`
	orders.UpdateResult
}

type replaceItemsResponse struct {
	Success bool     `json:"success"`
	ItemIDs []string `json:"item_ids"`
}

// errorBody — тело ответа с ошибкой; для многошаговых записей содержит прогресс.
type errorBody struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Step    string   `json:"step,omitempty"`
	Index   *int     `json:"index,omitempty"`
	Created []string `json:"created,omitempty"`
	Updated []string `json:"updated,omitempty"`
	Deleted []string `json:"deleted,omitempty"`
}
