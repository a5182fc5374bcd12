package orders

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// CreateResult — итог создания заказа.
type CreateResult struct {
	OrderID string `json:"order_id"`
	BillNo  string `json:"bill_no"`
	// ItemIDs — идентификаторы созданных позиций в порядке ввода.
	ItemIDs []string `json:"item_ids"`
}

// UpdateResult — итог обновления заказа.
type UpdateResult struct {
	// ItemIDs — идентификаторы позиций в порядке ввода, включая только что созданные.
	ItemIDs []string `json:"item_ids"`
	// Created — идентификаторы позиций, созданных при обновлении.
	Created []string `json:"created"`
	// Deleted — удалённые идентификаторы из ItemsToDelete.
	Deleted []string `json:"deleted"`
}

// CreateOrder создаёт позиции, затем одну запись заказа со ссылками на них.
// При сбое возвращает *domain.WriteError; уже созданные позиции не удаляются
// и перечислены в WriteError.Created.
func (r *Repository) CreateOrder(ctx context.Context, draft domain.Order, customerName string) (res CreateResult, err error) {
	start := r.now()
	defer func() { r.observe(opCreateOrder, start, err) }()

	if len(draft.Items) == 0 {
		return CreateResult{}, fmt.Errorf("%s: %w", opCreateOrder, domain.ErrItemsRequired)
	}

	logger := r.logger.WithFields(log.Fields{
		"op":      opCreateOrder,
		"bill_no": draft.BillNo,
		"items":   len(draft.Items),
	})

	itemIDs, idx, err := r.createItems(ctx, draft.Items)
	r.metrics.AddItemWrites("create", len(itemIDs))
	if err != nil {
		werr := &domain.WriteError{Op: opCreateOrder, Step: domain.StepCreateItem, Index: idx, Created: itemIDs, Err: err}
		logger.WithError(werr).Warn("create order failed, orphaned items left in store")
		return CreateResult{}, werr
	}

	rec, err := r.store.Create(ctx, domain.CollectionOrders, orderFields(draft, itemIDs))
	if err != nil {
		werr := &domain.WriteError{Op: opCreateOrder, Step: domain.StepCreateOrder, Index: -1, Created: itemIDs, Err: err}
		logger.WithError(werr).Warn("create order failed, orphaned items left in store")
		return CreateResult{}, werr
	}

	billNo := rec.String(domain.FieldBillNo)
	if billNo == "" {
		billNo = draft.BillNo
	}
	res = CreateResult{OrderID: rec.ID, BillNo: billNo, ItemIDs: itemIDs}

	logger.WithField("order_id", rec.ID).Info("order created")
	r.emitEvent(ctx, rec.ID, domain.EventOrderCreated, map[string]any{
		"bill_no":       billNo,
		"customer_id":   draft.ConsigneeID,
		"customer_name": customerName,
		"item_ids":      itemIDs,
		"grand_total":   draft.GrandTotal.String(),
	})
	return res, nil
}

// ReplaceOrderItems удаляет текущие позиции заказа по одной, затем создаёт новые.
// Новые идентификаторы в заказ не записываются, grand_total не пересчитывается:
// это делает вызывающий через UpdateOrder.
func (r *Repository) ReplaceOrderItems(ctx context.Context, orderID string, items []domain.LineItem) (ids []string, err error) {
	start := r.now()
	defer func() { r.observe(opReplaceOrderItems, start, err) }()

	if orderID == "" {
		return nil, fmt.Errorf("%s: %w", opReplaceOrderItems, domain.ErrOrderIDRequired)
	}

	logger := r.logger.WithFields(log.Fields{"op": opReplaceOrderItems, "order_id": orderID})

	rec, err := r.store.GetOne(ctx, domain.CollectionOrders, orderID, domain.GetOptions{})
	if err != nil {
		return nil, &domain.WriteError{Op: opReplaceOrderItems, Step: domain.StepReadOrder, Index: -1, Err: err}
	}

	existing := rec.Strings(domain.FieldOrderItems)
	deleted := make([]string, 0, len(existing))
	for i, id := range existing {
		if err := r.store.Delete(ctx, domain.CollectionOrderItems, id); err != nil {
			r.metrics.AddItemWrites("delete", len(deleted))
			werr := &domain.WriteError{Op: opReplaceOrderItems, Step: domain.StepDeleteItem, Index: i, Deleted: deleted, Err: err}
			logger.WithError(werr).Warn("replace items failed")
			return nil, werr
		}
		deleted = append(deleted, id)
	}
	r.metrics.AddItemWrites("delete", len(deleted))

	created, idx, err := r.createItems(ctx, items)
	r.metrics.AddItemWrites("create", len(created))
	if err != nil {
		werr := &domain.WriteError{Op: opReplaceOrderItems, Step: domain.StepCreateItem, Index: idx, Created: created, Deleted: deleted, Err: err}
		logger.WithError(werr).Warn("replace items failed")
		return nil, werr
	}

	logger.WithFields(log.Fields{
		"deleted": len(deleted),
		"created": len(created),
	}).Debug("items replaced; order item list and grand total left unchanged")

	r.emitEvent(ctx, orderID, domain.EventOrderItemsReplaced, map[string]any{
		"deleted_item_ids": deleted,
		"item_ids":         created,
	})
	return created, nil
}

// UpdateOrder применяет патч шапки одним вызовом, затем обновляет позиции с ID,
// создаёт позиции без ID и удаляет patch.ItemsToDelete. Первый сбой прерывает
// оставшиеся шаги; уже выполненные записи остаются и перечислены в *domain.WriteError.
func (r *Repository) UpdateOrder(ctx context.Context, orderID string, patch domain.HeaderPatch, items []domain.LineItem) (res UpdateResult, err error) {
	start := r.now()
	defer func() { r.observe(opUpdateOrder, start, err) }()

	if orderID == "" {
		return UpdateResult{}, fmt.Errorf("%s: %w", opUpdateOrder, domain.ErrOrderIDRequired)
	}

	logger := r.logger.WithFields(log.Fields{"op": opUpdateOrder, "order_id": orderID})
	fail := func(step domain.WriteStep, idx int, updated, created, deleted []string, cause error) error {
		werr := &domain.WriteError{
			Op:      opUpdateOrder,
			Step:    step,
			Index:   idx,
			Created: created,
			Updated: updated,
			Deleted: deleted,
			Err:     cause,
		}
		logger.WithError(werr).Warn("update order failed")
		return werr
	}

	if _, err := r.store.Update(ctx, domain.CollectionOrders, orderID, patchFields(patch)); err != nil {
		return UpdateResult{}, fail(domain.StepUpdateOrder, -1, nil, nil, nil, err)
	}

	updated := []string{orderID}
	var created []string
	itemIDs := make([]string, 0, len(items))
	for i, item := range items {
		if item.Persisted() {
			if _, err := r.store.Update(ctx, domain.CollectionOrderItems, item.ID, itemFields(item)); err != nil {
				r.countItemWrites(len(updated)-1, len(created), 0)
				return UpdateResult{}, fail(domain.StepUpdateItem, i, updated, created, nil, err)
			}
			updated = append(updated, item.ID)
			itemIDs = append(itemIDs, item.ID)
			continue
		}

		rec, err := r.store.Create(ctx, domain.CollectionOrderItems, itemFields(item))
		if err != nil {
			r.countItemWrites(len(updated)-1, len(created), 0)
			return UpdateResult{}, fail(domain.StepCreateItem, i, updated, created, nil, err)
		}
		created = append(created, rec.ID)
		itemIDs = append(itemIDs, rec.ID)
	}

	deleted := make([]string, 0, len(patch.ItemsToDelete))
	for i, id := range patch.ItemsToDelete {
		if err := r.store.Delete(ctx, domain.CollectionOrderItems, id); err != nil {
			r.countItemWrites(len(updated)-1, len(created), len(deleted))
			return UpdateResult{}, fail(domain.StepDeleteItem, i, updated, created, deleted, err)
		}
		deleted = append(deleted, id)
	}
	r.countItemWrites(len(updated)-1, len(created), len(deleted))

	res = UpdateResult{ItemIDs: itemIDs, Created: created, Deleted: deleted}
	if res.Created == nil {
		res.Created = []string{}
	}

	logger.WithFields(log.Fields{
		"updated_items": len(updated) - 1,
		"created_items": len(created),
		"deleted_items": len(deleted),
	}).Info("order updated")
	r.emitEvent(ctx, orderID, domain.EventOrderUpdated, map[string]any{
		"item_ids":         itemIDs,
		"created_item_ids": res.Created,
		"deleted_item_ids": deleted,
	})
	return res, nil
}

func (r *Repository) countItemWrites(updated, created, deleted int) {
	r.metrics.AddItemWrites("update", updated)
	r.metrics.AddItemWrites("create", created)
	r.metrics.AddItemWrites("delete", deleted)
}

// createItems создаёт позиции и возвращает их идентификаторы в порядке ввода.
// При сбое возвращает идентификаторы уже созданных позиций и индекс упавшей.
func (r *Repository) createItems(ctx context.Context, items []domain.LineItem) ([]string, int, error) {
	if r.itemConcurrency <= 1 || len(items) < 2 {
		ids := make([]string, 0, len(items))
		for i, item := range items {
			rec, err := r.store.Create(ctx, domain.CollectionOrderItems, itemFields(item))
			if err != nil {
				return ids, i, err
			}
			ids = append(ids, rec.ID)
		}
		return ids, -1, nil
	}

	slots := make([]string, len(items))
	errs := make([]error, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.itemConcurrency)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return err
			}
			rec, err := r.store.Create(gctx, domain.CollectionOrderItems, itemFields(item))
			if err != nil {
				errs[i] = err
				return err
			}
			slots[i] = rec.ID
			return nil
		})
	}

	if err := g.Wait(); err == nil {
		return slots, -1, nil
	}

	ids := make([]string, 0, len(items))
	for _, id := range slots {
		if id != "" {
			ids = append(ids, id)
		}
	}
	idx := firstCause(errs)
	return ids, idx, errs[idx]
}

// firstCause выбирает первый сбой, не являющийся отменой контекста группы.
func firstCause(errs []error) int {
	fallback := -1
	for i, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return i
		}
		if fallback < 0 {
			fallback = i
		}
	}
	return fallback
}
