package orders

import (
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

func itemFields(item domain.LineItem) map[string]any {
	return map[string]any{
		domain.FieldItemName:   item.ItemName,
		domain.FieldQty:        item.Qty,
		domain.FieldFree:       domain.DecimalValue(item.Free),
		domain.FieldTradePrice: domain.DecimalValue(item.TradePrice),
		domain.FieldDiscount:   domain.DecimalValue(item.Discount),
		domain.FieldTax:        domain.DecimalValue(item.Tax),
		domain.FieldTotalAmt:   domain.DecimalValue(item.TotalAmt),
	}
}

func orderFields(order domain.Order, itemIDs []string) map[string]any {
	return map[string]any{
		domain.FieldBillNo:           order.BillNo,
		domain.FieldBillDate:         order.BillDate,
		domain.FieldConsignee:        order.ConsigneeID,
		domain.FieldAddress:          order.Address,
		domain.FieldDistrict:         order.District,
		domain.FieldZone:             order.Zone,
		domain.FieldCustCategory:     order.CustCategory,
		domain.FieldCustActiveStatus: order.CustActiveStatus,
		domain.FieldOrderItems:       itemIDs,
		domain.FieldGrandTotal:       domain.DecimalValue(order.GrandTotal),
		domain.FieldRemark:           order.Remark,
		domain.FieldRatingRemark:     order.RatingRemark,
	}
}

// patchFields отдаёт только заданные поля; ItemsToDelete в хранилище не пишется.
func patchFields(p domain.HeaderPatch) map[string]any {
	fields := make(map[string]any)
	setString := func(name string, v *string) {
		if v != nil {
			fields[name] = *v
		}
	}

	setString(domain.FieldBillNo, p.BillNo)
	setString(domain.FieldBillDate, p.BillDate)
	setString(domain.FieldConsignee, p.ConsigneeID)
	setString(domain.FieldAddress, p.Address)
	setString(domain.FieldDistrict, p.District)
	setString(domain.FieldZone, p.Zone)
	setString(domain.FieldCustCategory, p.CustCategory)
	setString(domain.FieldCustActiveStatus, p.CustActiveStatus)
	setString(domain.FieldRemark, p.Remark)
	setString(domain.FieldRatingRemark, p.RatingRemark)
	if p.GrandTotal != nil {
		fields[domain.FieldGrandTotal] = domain.DecimalValue(*p.GrandTotal)
	}
	if p.ItemIDs != nil {
		ids := make([]string, len(p.ItemIDs))
		copy(ids, p.ItemIDs)
		fields[domain.FieldOrderItems] = ids
	}
	return fields
}

// decodeOrder собирает заказ из записи. Раскрытие order_items принимается только
// в виде []Record, иначе список позиций пуст.
func decodeOrder(rec domain.Record) domain.Order {
	order := domain.Order{
		ID:               rec.ID,
		BillNo:           rec.String(domain.FieldBillNo),
		BillDate:         rec.String(domain.FieldBillDate),
		ConsigneeID:      rec.String(domain.FieldConsignee),
		Address:          rec.String(domain.FieldAddress),
		District:         rec.String(domain.FieldDistrict),
		Zone:             rec.String(domain.FieldZone),
		CustCategory:     rec.String(domain.FieldCustCategory),
		CustActiveStatus: rec.String(domain.FieldCustActiveStatus),
		Remark:           rec.String(domain.FieldRemark),
		RatingRemark:     rec.String(domain.FieldRatingRemark),
		GrandTotal:       rec.Decimal(domain.FieldGrandTotal),
		ItemIDs:          rec.Strings(domain.FieldOrderItems),
		Items:            []domain.LineItem{},
		Created:          rec.Created,
		Updated:          rec.Updated,
	}
	if order.ItemIDs == nil {
		order.ItemIDs = []string{}
	}

	if expanded, ok := rec.Expand[domain.FieldOrderItems].([]domain.Record); ok {
		for _, itemRec := range expanded {
			order.Items = append(order.Items, decodeItem(itemRec))
		}
	}
	return order
}

func decodeItem(rec domain.Record) domain.LineItem {
	return domain.LineItem{
		ID:         rec.ID,
		ItemName:   rec.String(domain.FieldItemName),
		Qty:        rec.Int(domain.FieldQty),
		Free:       rec.Decimal(domain.FieldFree),
		TradePrice: rec.Decimal(domain.FieldTradePrice),
		Discount:   rec.Decimal(domain.FieldDiscount),
		Tax:        rec.Decimal(domain.FieldTax),
		TotalAmt:   rec.Decimal(domain.FieldTotalAmt),
	}
}

func decodeCustomer(rec domain.Record) domain.Customer {
	return domain.Customer{
		ID:      rec.ID,
		Name:    rec.String(domain.FieldCustName),
		Address: rec.String(domain.FieldCustAddress),
	}
}
