package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineItem представляет одну позицию заказа.
type LineItem struct {
	// ID назначает хранилище; пустой ID означает, что позиция ещё не сохранена.
	ID string `json:"id,omitempty"`
	// ItemName — ссылка на позицию каталога (название товара).
	ItemName   string          `json:"item_name"`
	Qty        int             `json:"qty"`
	Free       decimal.Decimal `json:"free"`
	TradePrice decimal.Decimal `json:"trade_price"`
	// Discount трактуется как процент от qty * trade_price.
	Discount decimal.Decimal `json:"discount"`
	// Tax трактуется как процент, начисляемый после скидки.
	Tax      decimal.Decimal `json:"tax"`
	TotalAmt decimal.Decimal `json:"total_amt"`
}

// Persisted сообщает, назначен ли позиции идентификатор хранилища.
func (i LineItem) Persisted() bool {
	return i.ID != ""
}

// ComputeTotal считает qty * trade_price с учётом скидки и налога.
// Репозиторий сам эту сумму не пересчитывает: total_amt заполняет вызывающий код.
func (i LineItem) ComputeTotal() decimal.Decimal {
	gross := i.TradePrice.Mul(decimal.NewFromInt(int64(i.Qty)))
	net := gross.Sub(gross.Mul(i.Discount).Div(hundred))
	return net.Add(net.Mul(i.Tax).Div(hundred)).Round(2)
}

// Order агрегирует шапку заказа и его позиции.
type Order struct {
	ID               string          `json:"id,omitempty"`
	BillNo           string          `json:"bill_no"`
	BillDate         string          `json:"bill_date"`
	ConsigneeID      string          `json:"consignee_name"`
	Address          string          `json:"address"`
	District         string          `json:"district"`
	Zone             string          `json:"zone"`
	CustCategory     string          `json:"cust_category"`
	CustActiveStatus string          `json:"cust_active_status"`
	Remark           string          `json:"remark"`
	RatingRemark     string          `json:"rating_remark"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
	// ItemIDs — ссылки на записи order_items в порядке ввода.
	ItemIDs []string   `json:"order_items"`
	Items   []LineItem `json:"items,omitempty"`
	Created time.Time  `json:"created,omitempty"`
	Updated time.Time  `json:"updated,omitempty"`
}

// ItemsTotal суммирует total_amt всех позиций.
func (o *Order) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.TotalAmt)
	}
	return sum
}

// ValidateInvariants проверяет инварианты заказа и возвращает список замечаний.
// Хранилище эти инварианты не обеспечивает, поэтому проверка остаётся на стороне вызывающего.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	for _, item := range o.Items {
		if item.Qty < 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
	}
	if !o.GrandTotal.Equal(o.ItemsTotal()) {
		errs = append(errs, ErrGrandTotalMismatch)
	}

	return errs
}

// Customer — справочная запись клиента из коллекции customer_details.
type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// HeaderPatch описывает частичное обновление шапки заказа.
// nil-поля не отправляются в хранилище.
type HeaderPatch struct {
	BillNo           *string          `json:"bill_no,omitempty"`
	BillDate         *string          `json:"bill_date,omitempty"`
	ConsigneeID      *string          `json:"consignee_name,omitempty"`
	Address          *string          `json:"address,omitempty"`
	District         *string          `json:"district,omitempty"`
	Zone             *string          `json:"zone,omitempty"`
	CustCategory     *string          `json:"cust_category,omitempty"`
	CustActiveStatus *string          `json:"cust_active_status,omitempty"`
	Remark           *string          `json:"remark,omitempty"`
	RatingRemark     *string          `json:"rating_remark,omitempty"`
	GrandTotal       *decimal.Decimal `json:"grand_total,omitempty"`
	// ItemIDs перезаписывает список ссылок на позиции, если не nil.
	ItemIDs []string `json:"order_items,omitempty"`
	// ItemsToDelete удаляются после применения шапки и upsert позиций.
	ItemsToDelete []string `json:"itemsToDelete,omitempty"`
}
