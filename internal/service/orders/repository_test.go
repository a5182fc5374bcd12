package orders_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

func newTestRepo(t *testing.T, store domain.RecordStore, opts ...orders.Option) *orders.Repository {
	t.Helper()
	logger := log.New()
	logger.SetLevel(log.ErrorLevel)
	opts = append([]orders.Option{orders.WithLogger(logger.WithField("test", t.Name()))}, opts...)
	return orders.NewRepository(store, opts...)
}

func item(name string, qty int, price int64) domain.LineItem {
	total := decimal.NewFromInt(price * int64(qty))
	return domain.LineItem{
		ItemName:   name,
		Qty:        qty,
		TradePrice: decimal.NewFromInt(price),
		TotalAmt:   total,
	}
}

func draft(billNo string, items ...domain.LineItem) domain.Order {
	o := domain.Order{
		BillNo:      billNo,
		BillDate:    "2024-03-01",
		ConsigneeID: "cust-1",
		Items:       items,
	}
	o.GrandTotal = o.ItemsTotal()
	return o
}

func opsOf(calls []memory.Call) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, fmt.Sprintf("%s:%s", c.Op, c.Collection))
	}
	return out
}

func TestCreateOrder_EndToEndScenario(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	repo := newTestRepo(t, store)

	order := domain.Order{
		BillNo:     "B1",
		GrandTotal: decimal.NewFromInt(20),
		Items: []domain.LineItem{{
			ItemName:   "X",
			Qty:        2,
			TradePrice: decimal.NewFromInt(10),
			Discount:   decimal.Zero,
			Tax:        decimal.Zero,
			TotalAmt:   decimal.NewFromInt(20),
		}},
	}

	res, err := repo.CreateOrder(ctx, order, "Acme")
	require.NoError(t, err)
	require.NotEmpty(t, res.OrderID)
	require.Equal(t, "B1", res.BillNo)

	require.Equal(t, []string{
		"create:order_items",
		"create:orders",
	}, opsOf(store.Calls()))

	got, err := repo.FetchOrder(ctx, res.OrderID)
	require.NoError(t, err)
	require.Equal(t, "B1", got.BillNo)
	require.True(t, got.GrandTotal.Equal(decimal.NewFromInt(20)))
	require.Len(t, got.Items, 1)
	require.Equal(t, "X", got.Items[0].ItemName)
	require.Equal(t, 2, got.Items[0].Qty)
	require.True(t, got.Items[0].TotalAmt.Equal(decimal.NewFromInt(20)))
}

func TestCreateOrder_ItemCreatesPrecedeOrderCreateAndKeepOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	repo := newTestRepo(t, store)

	res, err := repo.CreateOrder(ctx, draft("B2", item("a", 1, 5), item("b", 2, 3), item("c", 3, 1)), "")
	require.NoError(t, err)

	calls := store.Calls()
	require.Equal(t, []string{
		"create:order_items",
		"create:order_items",
		"create:order_items",
		"create:orders",
	}, opsOf(calls))
	require.Equal(t, []string{calls[0].ID, calls[1].ID, calls[2].ID}, res.ItemIDs)

	rec, err := store.GetOne(ctx, domain.CollectionOrders, res.OrderID, domain.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, res.ItemIDs, rec.Strings(domain.FieldOrderItems))
	require.Equal(t, "cust-1", rec.String(domain.FieldConsignee))
}

func TestCreateOrder_RequiresItems(t *testing.T) {
	store := memory.NewRecordStore()
	repo := newTestRepo(t, store)

	_, err := repo.CreateOrder(context.Background(), domain.Order{BillNo: "B3"}, "")
	require.ErrorIs(t, err, domain.ErrItemsRequired)
	require.Empty(t, store.Calls())
}

func TestCreateOrder_ItemFailureStopsSequence(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	store.FailOn(memory.OpCreate, domain.CollectionOrderItems, 2, nil)
	repo := newTestRepo(t, store)

	_, err := repo.CreateOrder(ctx, draft("B4", item("a", 1, 1), item("b", 1, 1), item("c", 1, 1)), "")
	require.Error(t, err)
	require.False(t, orders.Succeeded(err))
	require.ErrorIs(t, err, domain.ErrPartialFailure)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	werr, ok := domain.AsWriteError(err)
	require.True(t, ok)
	require.Equal(t, domain.StepCreateItem, werr.Step)
	require.Equal(t, 1, werr.Index)
	require.Len(t, werr.Created, 1)

	// сирота остаётся в хранилище, заказ не создан
	require.Equal(t, 1, store.Count(domain.CollectionOrderItems))
	require.Equal(t, 0, store.Count(domain.CollectionOrders))
	require.Len(t, store.Calls(), 2)
}

func TestCreateOrder_FirstItemFailureIsNotPartial(t *testing.T) {
	store := memory.NewRecordStore()
	store.FailOn(memory.OpCreate, domain.CollectionOrderItems, 1, nil)
	repo := newTestRepo(t, store)

	_, err := repo.CreateOrder(context.Background(), draft("B5", item("a", 1, 1)), "")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.NotErrorIs(t, err, domain.ErrPartialFailure)
}

func TestCreateOrder_OrderCreateFailureReportsOrphans(t *testing.T) {
	store := memory.NewRecordStore()
	store.FailOn(memory.OpCreate, domain.CollectionOrders, 1, nil)
	repo := newTestRepo(t, store)

	_, err := repo.CreateOrder(context.Background(), draft("B6", item("a", 1, 1), item("b", 1, 1)), "")
	werr, ok := domain.AsWriteError(err)
	require.True(t, ok)
	require.Equal(t, domain.StepCreateOrder, werr.Step)
	require.Equal(t, -1, werr.Index)
	require.Len(t, werr.Created, 2)
	require.Equal(t, 2, store.Count(domain.CollectionOrderItems))
}

func TestCreateOrder_BoundedConcurrencyPreservesOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	repo := newTestRepo(t, store, orders.WithItemConcurrency(4))

	items := make([]domain.LineItem, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, item(fmt.Sprintf("item-%02d", i), 1, 1))
	}

	res, err := repo.CreateOrder(ctx, draft("B7", items...), "")
	require.NoError(t, err)
	require.Len(t, res.ItemIDs, 10)

	calls := store.Calls()
	require.Len(t, calls, 11)
	require.Equal(t, domain.CollectionOrders, calls[10].Collection)

	got, err := repo.FetchOrder(ctx, res.OrderID)
	require.NoError(t, err)
	for i, it := range got.Items {
		require.Equal(t, fmt.Sprintf("item-%02d", i), it.ItemName)
		require.Equal(t, res.ItemIDs[i], it.ID)
	}
}

func TestCreateOrder_BoundedConcurrencyFailure(t *testing.T) {
	store := memory.NewRecordStore()
	store.FailOn(memory.OpCreate, domain.CollectionOrderItems, 1, nil)
	repo := newTestRepo(t, store, orders.WithItemConcurrency(2))

	_, err := repo.CreateOrder(context.Background(), draft("B8", item("a", 1, 1), item("b", 1, 1), item("c", 1, 1)), "")
	werr, ok := domain.AsWriteError(err)
	require.True(t, ok)
	require.Equal(t, domain.StepCreateItem, werr.Step)
	require.GreaterOrEqual(t, werr.Index, 0)
	require.Equal(t, 0, store.Count(domain.CollectionOrders))
	require.Equal(t, len(werr.Created), store.Count(domain.CollectionOrderItems))
}

func TestFetchOrder_DefaultsMissingNumericFields(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	store.Seed(domain.CollectionOrderItems, "it-1", map[string]any{domain.FieldItemName: "legacy", domain.FieldQty: 4})
	store.Seed(domain.CollectionOrders, "ord-1", map[string]any{
		domain.FieldBillNo:     "L1",
		domain.FieldOrderItems: []string{"it-1"},
	})
	repo := newTestRepo(t, store)

	got, err := repo.FetchOrder(ctx, "ord-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)

	it := got.Items[0]
	require.Equal(t, 4, it.Qty)
	for name, v := range map[string]decimal.Decimal{
		"discount":    it.Discount,
		"free":        it.Free,
		"trade_price": it.TradePrice,
		"tax":         it.Tax,
		"total_amt":   it.TotalAmt,
	} {
		assert.True(t, v.IsZero(), name)
	}
	require.True(t, got.GrandTotal.IsZero())

	require.Equal(t, []string{"getOne:orders"}, opsOf(store.Calls()))
}

func TestFetchOrder_MissingExpansionYieldsNoItems(t *testing.T) {
	store := memory.NewRecordStore()
	store.Seed(domain.CollectionOrders, "ord-1", map[string]any{domain.FieldBillNo: "L2"})
	repo := newTestRepo(t, store)

	got, err := repo.FetchOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	require.NotNil(t, got.Items)
	require.Len(t, got.Items, 0)
}

// malformedExpandStore отдаёт раскрытие order_items неожиданного типа.
type malformedExpandStore struct {
	domain.RecordStore
	expand any
}

func (s malformedExpandStore) GetOne(ctx context.Context, collection, id string, opts domain.GetOptions) (domain.Record, error) {
	rec, err := s.RecordStore.GetOne(ctx, collection, id, opts)
	if err != nil {
		return rec, err
	}
	rec.Expand = map[string]any{domain.FieldOrderItems: s.expand}
	return rec, nil
}

func TestFetchOrder_MalformedExpansionYieldsNoItems(t *testing.T) {
	store := memory.NewRecordStore()
	store.Seed(domain.CollectionOrders, "ord-1", map[string]any{
		domain.FieldBillNo:     "L3",
		domain.FieldOrderItems: []string{"it-1"},
	})

	for name, expand := range map[string]any{
		"string": "it-1",
		"map":    map[string]any{"id": "it-1"},
		"nil":    nil,
		"record": domain.Record{ID: "it-1"},
	} {
		t.Run(name, func(t *testing.T) {
			repo := newTestRepo(t, malformedExpandStore{RecordStore: store, expand: expand})
			got, err := repo.FetchOrder(context.Background(), "ord-1")
			require.NoError(t, err)
			require.Len(t, got.Items, 0)
			require.Equal(t, []string{"it-1"}, got.ItemIDs)
		})
	}
}

func TestFetchOrder_NotFound(t *testing.T) {
	repo := newTestRepo(t, memory.NewRecordStore())

	_, err := repo.FetchOrder(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.True(t, domain.IsNotFound(err))

	_, err = repo.FetchOrder(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrOrderIDRequired)
}

func seedOrderWithItems(t *testing.T, store *memory.RecordStore, id string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		itemID := fmt.Sprintf("%s-it-%d", id, i)
		store.Seed(domain.CollectionOrderItems, itemID, map[string]any{domain.FieldItemName: itemID})
		ids = append(ids, itemID)
	}
	store.Seed(domain.CollectionOrders, id, map[string]any{
		domain.FieldBillNo:     "R-" + id,
		domain.FieldOrderItems: ids,
		domain.FieldGrandTotal: 99,
	})
	return ids
}

func TestReplaceOrderItems_DeletesThenCreates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	old := seedOrderWithItems(t, store, "ord-1", 3)
	repo := newTestRepo(t, store)

	ids, err := repo.ReplaceOrderItems(ctx, "ord-1", []domain.LineItem{item("n1", 1, 1), item("n2", 1, 1)})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	calls := store.Calls()
	require.Equal(t, []string{
		"getOne:orders",
		"delete:order_items",
		"delete:order_items",
		"delete:order_items",
		"create:order_items",
		"create:order_items",
	}, opsOf(calls))
	require.Equal(t, old, []string{calls[1].ID, calls[2].ID, calls[3].ID})
	require.Equal(t, []string{calls[4].ID, calls[5].ID}, ids)

	// заказ не трогается: список позиций и grand_total прежние
	rec, err := store.GetOne(ctx, domain.CollectionOrders, "ord-1", domain.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, old, rec.Strings(domain.FieldOrderItems))
	require.Equal(t, 99, rec.Int(domain.FieldGrandTotal))
}

func TestReplaceOrderItems_StopsAtFailingDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	seedOrderWithItems(t, store, "ord-1", 3)
	store.FailOn(memory.OpDelete, domain.CollectionOrderItems, 2, nil)
	repo := newTestRepo(t, store)

	ids, err := repo.ReplaceOrderItems(ctx, "ord-1", []domain.LineItem{item("n1", 1, 1)})
	require.Error(t, err)
	require.Nil(t, ids)
	require.ErrorIs(t, err, domain.ErrPartialFailure)

	werr, ok := domain.AsWriteError(err)
	require.True(t, ok)
	require.Equal(t, domain.StepDeleteItem, werr.Step)
	require.Equal(t, 1, werr.Index)
	require.Equal(t, []string{"ord-1-it-0"}, werr.Deleted)

	require.Equal(t, []string{
		"getOne:orders",
		"delete:order_items",
		"delete:order_items",
	}, opsOf(store.Calls()))
	require.Equal(t, 2, store.Count(domain.CollectionOrderItems))
}

func TestReplaceOrderItems_MissingOrder(t *testing.T) {
	store := memory.NewRecordStore()
	repo := newTestRepo(t, store)

	_, err := repo.ReplaceOrderItems(context.Background(), "missing", []domain.LineItem{item("n1", 1, 1)})
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NotErrorIs(t, err, domain.ErrStoreUnavailable)
	require.Equal(t, []string{"getOne:orders"}, opsOf(store.Calls()))
}

func TestUpdateOrder_UpsertsByIdentityPresence(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	old := seedOrderWithItems(t, store, "ord-1", 2)
	repo := newTestRepo(t, store)

	existing := item("changed", 7, 2)
	existing.ID = old[0]
	fresh := item("new", 1, 3)

	remark := "urgent"
	total := decimal.NewFromInt(17)
	res, err := repo.UpdateOrder(ctx, "ord-1", domain.HeaderPatch{
		Remark:        &remark,
		GrandTotal:    &total,
		ItemsToDelete: []string{old[1]},
	}, []domain.LineItem{existing, fresh})
	require.NoError(t, err)
	require.True(t, orders.Succeeded(err))

	calls := store.Calls()
	require.Equal(t, []string{
		"update:orders",
		"update:order_items",
		"create:order_items",
		"delete:order_items",
	}, opsOf(calls))
	require.Equal(t, old[0], calls[1].ID)
	require.Equal(t, old[1], calls[3].ID)
	require.Equal(t, []string{old[0], calls[2].ID}, res.ItemIDs)
	require.Equal(t, []string{calls[2].ID}, res.Created)
	require.Equal(t, []string{old[1]}, res.Deleted)

	rec, err := store.GetOne(ctx, domain.CollectionOrders, "ord-1", domain.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, "urgent", rec.String(domain.FieldRemark))
	require.Equal(t, "17", rec.String(domain.FieldGrandTotal))
	// незаданные поля патча не затираются
	require.Equal(t, "R-ord-1", rec.String(domain.FieldBillNo))

	itemRec, err := store.GetOne(ctx, domain.CollectionOrderItems, old[0], domain.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, "changed", itemRec.String(domain.FieldItemName))
	require.Equal(t, 7, itemRec.Int(domain.FieldQty))
}

func TestUpdateOrder_FailureAbortsRemainingSteps(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	old := seedOrderWithItems(t, store, "ord-1", 2)
	store.FailOn(memory.OpCreate, domain.CollectionOrderItems, 1, nil)
	repo := newTestRepo(t, store)

	existing := item("changed", 1, 1)
	existing.ID = old[0]
	_, err := repo.UpdateOrder(ctx, "ord-1", domain.HeaderPatch{ItemsToDelete: []string{old[1]}},
		[]domain.LineItem{existing, item("new", 1, 1), item("never", 1, 1)})
	require.False(t, orders.Succeeded(err))
	require.ErrorIs(t, err, domain.ErrPartialFailure)

	werr, ok := domain.AsWriteError(err)
	require.True(t, ok)
	require.Equal(t, domain.StepCreateItem, werr.Step)
	require.Equal(t, 1, werr.Index)
	require.Equal(t, []string{"ord-1", old[0]}, werr.Updated)

	require.Equal(t, []string{
		"update:orders",
		"update:order_items",
		"create:order_items",
	}, opsOf(store.Calls()))
	require.Equal(t, 2, store.Count(domain.CollectionOrderItems))
}

func TestUpdateOrder_HeaderFailureOnMissingOrder(t *testing.T) {
	store := memory.NewRecordStore()
	repo := newTestRepo(t, store)

	_, err := repo.UpdateOrder(context.Background(), "missing", domain.HeaderPatch{}, []domain.LineItem{item("a", 1, 1)})
	require.ErrorIs(t, err, domain.ErrNotFound)
	werr, ok := domain.AsWriteError(err)
	require.True(t, ok)
	require.Equal(t, domain.StepUpdateOrder, werr.Step)
	require.Len(t, store.Calls(), 1)
}

func TestListOrders_DefaultSortDescendingByBillNo(t *testing.T) {
	store := memory.NewRecordStore()
	for _, bill := range []string{"3", "11", "7"} {
		store.Seed(domain.CollectionOrders, "ord-"+bill, map[string]any{domain.FieldBillNo: bill})
	}
	repo := newTestRepo(t, store)

	got, err := repo.ListOrders(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []string{"11", "7", "3"}, []string{got[0].BillNo, got[1].BillNo, got[2].BillNo})

	asc, err := repo.ListOrders(context.Background(), "bill_no")
	require.NoError(t, err)
	require.Equal(t, "3", asc[0].BillNo)

	_, err = repo.ListOrders(context.Background(), "bill no")
	require.ErrorIs(t, err, domain.ErrInvalidSort)
}

func TestListDistinct_KeepsDuplicates(t *testing.T) {
	store := memory.NewRecordStore()
	for i, v := range []string{"A", "A", "", "B"} {
		store.Seed(domain.CollectionOrders, fmt.Sprintf("ord-%d", i), map[string]any{domain.FieldCustCategory: v})
	}
	repo := newTestRepo(t, store)

	got, err := repo.ListCategories(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"A", "A", "B"}, got)
	require.Equal(t, []string{"getList:orders"}, opsOf(store.Calls()))

	statuses, err := repo.ListActiveStatuses(context.Background())
	require.NoError(t, err)
	require.Empty(t, statuses)

	_, err = repo.ListDistinct(context.Background(), "bad field")
	require.ErrorIs(t, err, domain.ErrInvalidField)
}

func TestListDistinct_ReadsAtMostOnePage(t *testing.T) {
	store := memory.NewRecordStore()
	for i := 0; i < 120; i++ {
		store.Seed(domain.CollectionOrders, fmt.Sprintf("ord-%03d", i), map[string]any{domain.FieldZone: "north"})
	}
	repo := newTestRepo(t, store)

	got, err := repo.ListDistinct(context.Background(), domain.FieldZone)
	require.NoError(t, err)
	require.Len(t, got, 100)
}

func TestCustomers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	store.Seed(domain.CollectionCustomers, "c1", map[string]any{
		domain.FieldCustName:    "Acme",
		domain.FieldCustAddress: "Main st. 1",
		"phone":                 "ignored",
	})
	store.Seed(domain.CollectionCustomers, "c2", map[string]any{domain.FieldCustName: "Globex"})
	repo := newTestRepo(t, store)

	c, err := repo.LookupCustomer(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, domain.Customer{ID: "c1", Name: "Acme", Address: "Main st. 1"}, c)

	_, err = repo.LookupCustomer(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.LookupCustomer(ctx, "")
	require.ErrorIs(t, err, domain.ErrCustomerIDRequired)

	all, err := repo.ListAllCustomers(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.Customer{
		{ID: "c1", Name: "Acme", Address: "Main st. 1"},
		{ID: "c2", Name: "Globex"},
	}, all)
}

func TestReadsSurfaceStoreUnavailable(t *testing.T) {
	store := memory.NewRecordStore()
	store.FailOn(memory.OpGetFullList, "", 1, nil)
	repo := newTestRepo(t, store)

	_, err := repo.ListOrders(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.True(t, domain.IsStoreUnavailable(err))
}

func TestEvents_EnqueuedOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	outbox := memory.NewOutboxRepository()
	repo := newTestRepo(t, store, orders.WithOutbox(outbox))

	res, err := repo.CreateOrder(ctx, draft("E1", item("a", 1, 1)), "Acme")
	require.NoError(t, err)

	pending := outbox.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, domain.EventOrderCreated, pending[0].EventType)
	require.Equal(t, domain.AggregateOrder, pending[0].AggregateType)
	require.Equal(t, res.OrderID, pending[0].AggregateID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(pending[0].Payload, &payload))
	require.Equal(t, "E1", payload["bill_no"])
	require.Equal(t, "Acme", payload["customer_name"])
	require.Equal(t, res.OrderID, payload["order_id"])

	store.FailOn(memory.OpUpdate, domain.CollectionOrders, 1, nil)
	_, err = repo.UpdateOrder(ctx, res.OrderID, domain.HeaderPatch{}, nil)
	require.Error(t, err)
	require.Len(t, outbox.Pending(), 1)

	_, err = repo.ReplaceOrderItems(ctx, res.OrderID, []domain.LineItem{item("b", 1, 1)})
	require.NoError(t, err)
	pending = outbox.Pending()
	require.Len(t, pending, 2)
	require.Equal(t, domain.EventOrderItemsReplaced, pending[1].EventType)
}

func TestMetrics_ObserveOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRepositoryMetricsWithRegisterer(reg)
	store := memory.NewRecordStore()
	repo := newTestRepo(t, store, orders.WithMetrics(m))

	_, err := repo.CreateOrder(context.Background(), draft("M1", item("a", 1, 1), item("b", 1, 1)), "")
	require.NoError(t, err)
	_, err = repo.FetchOrder(context.Background(), "missing")
	require.Error(t, err)

	count, err := testutil.GatherAndCount(reg, "orderdesk_repository_operations_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	writes, err := testutil.GatherAndCount(reg, "orderdesk_repository_item_writes_total")
	require.NoError(t, err)
	require.Equal(t, 1, writes)
}

func TestSucceeded(t *testing.T) {
	require.True(t, orders.Succeeded(nil))
	require.False(t, orders.Succeeded(errors.New("boom")))
}
