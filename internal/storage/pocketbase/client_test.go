package pocketbase_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/pocketbase"
)

func newClient(t *testing.T, handler http.HandlerFunc) *pocketbase.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := pocketbase.New(srv.URL, pocketbase.WithToken("secret"), pocketbase.WithTimeout(2*time.Second))
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := pocketbase.New("ftp://example.com")
	require.Error(t, err)
	_, err = pocketbase.New("://")
	require.Error(t, err)
}

func TestGetOne_SendsExpandAndDecodesRecord(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/collections/orders/records/ord1", r.URL.Path)
		assert.Equal(t, "order_items", r.URL.Query().Get("expand"))
		assert.Equal(t, "secret", r.Header.Get("Authorization"))

		writeJSON(w, http.StatusOK, map[string]any{
			"id":             "ord1",
			"collectionName": "orders",
			"created":        "2024-03-01 10:00:00.000Z",
			"updated":        "2024-03-02T11:00:00Z",
			"bill_no":        "B1",
			"grand_total":    20.5,
			"order_items":    []string{"it1", "it2"},
			"expand": map[string]any{
				"order_items": []map[string]any{
					{"id": "it1", "collectionName": "order_items", "item_name": "X", "qty": 2},
					{"id": "it2", "collectionName": "order_items", "item_name": "Y"},
				},
			},
		})
	})

	rec, err := c.GetOne(context.Background(), domain.CollectionOrders, "ord1", domain.GetOptions{
		Expand: []string{domain.FieldOrderItems},
	})
	require.NoError(t, err)
	require.Equal(t, "ord1", rec.ID)
	require.Equal(t, "B1", rec.String(domain.FieldBillNo))
	require.Equal(t, "20.5", rec.Decimal(domain.FieldGrandTotal).String())
	require.Equal(t, []string{"it1", "it2"}, rec.Strings(domain.FieldOrderItems))
	require.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), rec.Created)
	require.Equal(t, time.Date(2024, 3, 2, 11, 0, 0, 0, time.UTC), rec.Updated)
	_, hasExpandField := rec.Fields["expand"]
	require.False(t, hasExpandField)

	items, ok := rec.Expand[domain.FieldOrderItems].([]domain.Record)
	require.True(t, ok)
	require.Len(t, items, 2)
	require.Equal(t, "X", items[0].String(domain.FieldItemName))
	require.Equal(t, 2, items[0].Int(domain.FieldQty))
	require.Equal(t, domain.CollectionOrderItems, items[1].Collection)
}

func TestGetOne_SingleRelationExpand(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":             "ord1",
			"consignee_name": "c1",
			"expand": map[string]any{
				"consignee_name": map[string]any{"id": "c1", "cust_name": "Acme"},
			},
		})
	})

	rec, err := c.GetOne(context.Background(), domain.CollectionOrders, "ord1", domain.GetOptions{
		Expand: []string{domain.FieldConsignee},
	})
	require.NoError(t, err)
	customer, ok := rec.Expand[domain.FieldConsignee].(domain.Record)
	require.True(t, ok)
	require.Equal(t, "Acme", customer.String(domain.FieldCustName))
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, domain.ErrNotFound},
		{"bad request", http.StatusBadRequest, domain.ErrRecordRejected},
		{"forbidden", http.StatusForbidden, domain.ErrStoreUnavailable},
		{"server error", http.StatusInternalServerError, domain.ErrStoreUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, map[string]any{"code": tc.status, "message": "boom " + tc.name})
			})

			_, err := c.GetOne(context.Background(), domain.CollectionOrders, "x", domain.GetOptions{})
			require.ErrorIs(t, err, tc.want)
			require.Contains(t, err.Error(), "boom "+tc.name)
			require.Contains(t, err.Error(), strconv.Itoa(tc.status))
		})
	}
}

func TestTransportErrorIsStoreUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := pocketbase.New(srv.URL)
	require.NoError(t, err)

	err = c.Ping(context.Background())
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestCreateAndUpdateSendJSONBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if !assert.NoError(t, dec.Decode(&body)) {
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/api/collections/order_items/records", r.URL.Path)
			assert.Equal(t, json.Number("10.50"), body[domain.FieldTradePrice])
			body["id"] = "it1"
		case http.MethodPatch:
			assert.Equal(t, "/api/collections/order_items/records/it1", r.URL.Path)
			body["id"] = "it1"
			body[domain.FieldItemName] = "X"
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
		writeJSON(w, http.StatusOK, body)
	})

	ctx := context.Background()
	rec, err := c.Create(ctx, domain.CollectionOrderItems, map[string]any{
		domain.FieldItemName:   "X",
		domain.FieldTradePrice: json.Number("10.50"),
	})
	require.NoError(t, err)
	require.Equal(t, "it1", rec.ID)
	require.Equal(t, "10.5", rec.Decimal(domain.FieldTradePrice).String())

	rec, err = c.Update(ctx, domain.CollectionOrderItems, "it1", map[string]any{domain.FieldQty: 3})
	require.NoError(t, err)
	require.Equal(t, 3, rec.Int(domain.FieldQty))
	require.Equal(t, "X", rec.String(domain.FieldItemName))
}

func TestDelete(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/collections/order_items/records/it1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Delete(context.Background(), domain.CollectionOrderItems, "it1"))
	require.EqualValues(t, 1, calls.Load())
}

func TestGetList_ForwardsPagingSortAndFilter(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "100", q.Get("perPage"))
		assert.Equal(t, "cust_category != ''", q.Get("filter"))
		assert.Empty(t, q.Get("skipTotal"))

		writeJSON(w, http.StatusOK, map[string]any{
			"page":       1,
			"perPage":    100,
			"totalItems": 3,
			"items": []map[string]any{
				{"id": "1", "cust_category": "A"},
				{"id": "2", "cust_category": "A"},
				{"id": "3", "cust_category": "B"},
			},
		})
	})

	page, err := c.GetList(context.Background(), domain.CollectionOrders, 1, 100, domain.ListOptions{
		Filter: domain.FieldNotEmpty(domain.FieldCustCategory),
	})
	require.NoError(t, err)
	require.Equal(t, 3, page.TotalItems)
	require.Len(t, page.Items, 3)
	require.Equal(t, "B", page.Items[2].String(domain.FieldCustCategory))
}

func TestGetFullList_PagesUntilShortPage(t *testing.T) {
	const total = 1203
	var requests atomic.Int32

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "-bill_no", q.Get("sort"))
		assert.Equal(t, "500", q.Get("perPage"))
		assert.Equal(t, "1", q.Get("skipTotal"))

		page, _ := strconv.Atoi(q.Get("page"))
		start := (page - 1) * 500
		end := start + 500
		if end > total {
			end = total
		}
		items := make([]map[string]any, 0, 500)
		for i := start; i < end; i++ {
			items = append(items, map[string]any{"id": fmt.Sprintf("r%d", i)})
		}
		writeJSON(w, http.StatusOK, map[string]any{"page": page, "perPage": 500, "items": items})
	})

	recs, err := c.GetFullList(context.Background(), domain.CollectionOrders, domain.ListOptions{Sort: "-bill_no"})
	require.NoError(t, err)
	require.Len(t, recs, total)
	require.Equal(t, "r1202", recs[total-1].ID)
	require.EqualValues(t, 3, requests.Load())
}

func TestGetFullList_Empty(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"page": 1, "perPage": 500, "items": []any{}})
	})

	recs, err := c.GetFullList(context.Background(), domain.CollectionCustomers, domain.ListOptions{})
	require.NoError(t, err)
	require.NotNil(t, recs)
	require.Empty(t, recs)
}

func TestPing(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"code": 200, "message": "API is healthy."})
	})
	require.NoError(t, c.Ping(context.Background()))
}
