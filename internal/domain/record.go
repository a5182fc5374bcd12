package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Коллекции хранилища.
const (
	CollectionOrders     = "orders"
	CollectionOrderItems = "order_items"
	CollectionCustomers  = "customer_details"
)

// Поля коллекции orders.
const (
	FieldBillNo           = "bill_no"
	FieldBillDate         = "bill_date"
	FieldConsignee        = "consignee_name"
	FieldAddress          = "address"
	FieldDistrict         = "district"
	FieldZone             = "zone"
	FieldCustCategory     = "cust_category"
	FieldCustActiveStatus = "cust_active_status"
	FieldOrderItems       = "order_items"
	FieldGrandTotal       = "grand_total"
	FieldRemark           = "remark"
	FieldRatingRemark     = "rating_remark"
)

// Поля коллекции order_items.
const (
	FieldItemName   = "item_name"
	FieldQty        = "qty"
	FieldFree       = "free"
	FieldTradePrice = "trade_price"
	FieldDiscount   = "discount"
	FieldTax        = "tax"
	FieldTotalAmt   = "total_amt"
)

// Поля коллекции customer_details.
const (
	FieldCustName    = "cust_name"
	FieldCustAddress = "cust_address"
)

// Record — запись коллекции в представлении хранилища.
type Record struct {
	ID         string
	Collection string
	Fields     map[string]any
	// Expand содержит раскрытые связи: Record для одиночной ссылки, []Record для списка.
	// Удалённое хранилище может вернуть сюда что угодно, поэтому читатели проверяют тип.
	Expand  map[string]any
	Created time.Time
	Updated time.Time
}

// Value возвращает сырое значение поля (включая служебные id/created/updated).
func (r Record) Value(field string) (any, bool) {
	switch field {
	case "id":
		return r.ID, true
	case "created":
		return r.Created, !r.Created.IsZero()
	case "updated":
		return r.Updated, !r.Updated.IsZero()
	}
	v, ok := r.Fields[field]
	return v, ok
}

// String возвращает значение поля как строку; числа форматируются без экспоненты.
func (r Record) String(field string) string {
	v, ok := r.Value(field)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case decimal.Decimal:
		return t.String()
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}

// Strings читает поле-связь: список идентификаторов или одиночный идентификатор.
func (r Record) Strings(field string) []string {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, el := range t {
			if s, ok := el.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}

// Decimal читает денежное поле; отсутствующее или нечисловое значение даёт ноль.
func (r Record) Decimal(field string) decimal.Decimal {
	return DecimalFromAny(r.Fields[field])
}

// Int читает целочисленное поле; отсутствующее значение даёт ноль.
func (r Record) Int(field string) int {
	return int(DecimalFromAny(r.Fields[field]).IntPart())
}

// DecimalFromAny приводит JSON-подобное значение к decimal, нечисловые значения дают ноль.
func DecimalFromAny(v any) decimal.Decimal {
	switch t := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return t
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(t)
	case float32:
		return decimal.NewFromFloat32(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case int32:
		return decimal.NewFromInt32(t)
	case int64:
		return decimal.NewFromInt(t)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// DecimalValue превращает decimal в JSON-число для записи в хранилище.
func DecimalValue(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// GetOptions задаёт параметры чтения одной записи.
type GetOptions struct {
	// Expand — имена полей-связей, которые нужно раскрыть.
	Expand []string
}

// ListOptions задаёт параметры выборки списка.
type ListOptions struct {
	// Sort — поля через запятую, префикс "-" означает убывание.
	Sort string
	// Filter — выражение вида `field != ''` или `field = 'value'`, условия через &&.
	Filter string
}

// RecordPage — страница выборки GetList.
type RecordPage struct {
	Page       int
	PerPage    int
	TotalItems int
	Items      []Record
}

// Relations описывает связи полей: коллекция → поле → целевая коллекция.
type Relations map[string]map[string]string

// Target возвращает целевую коллекцию связи.
func (r Relations) Target(collection, field string) (string, bool) {
	fields, ok := r[collection]
	if !ok {
		return "", false
	}
	target, ok := fields[field]
	return target, ok
}

// DefaultRelations возвращает схему связей коллекций заказов.
func DefaultRelations() Relations {
	return Relations{
		CollectionOrders: {
			FieldOrderItems: CollectionOrderItems,
			FieldConsignee:  CollectionCustomers,
		},
	}
}
