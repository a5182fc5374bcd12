package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/session"
)

// Псевдонимы полей для /api/distinct/:field.
var distinctAliases = map[string]string{
	"category":      domain.FieldCustCategory,
	"active_status": domain.FieldCustActiveStatus,
}

// Handler обслуживает API заказов.
type Handler struct {
	svc    OrderService
	cache  *session.OrdersCache
	logger *log.Entry
}

// Register вешает маршруты на группу.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/orders", h.createOrder)
	r.GET("/orders", h.listOrders)
	r.GET("/orders/:id", h.fetchOrder)
	r.PATCH("/orders/:id", h.updateOrder)
	r.PUT("/orders/:id/items", h.replaceItems)
	r.GET("/customers", h.listCustomers)
	r.GET("/customers/:id", h.lookupCustomer)
	r.GET("/distinct/:field", h.listDistinct)
}

func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	draft := req.order()
	h.warnInvariants(draft.BillNo, &draft)
	res, err := h.svc.CreateOrder(c.Request.Context(), draft, req.CustomerName)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.cache != nil {
		draft.ID = res.OrderID
		draft.ItemIDs = res.ItemIDs
		for i := range draft.Items {
			draft.Items[i].ID = res.ItemIDs[i]
		}
		if err := h.cache.Push(draft); err != nil {
			h.logger.WithError(err).Warn("failed to cache created order")
		}
	}

	c.JSON(http.StatusCreated, createOrderResponse{
		Success: true,
		OrderID: res.OrderID,
		BillNo:  res.BillNo,
		ItemIDs: res.ItemIDs,
	})
}

func (h *Handler) listOrders(c *gin.Context) {
	if cached, _ := strconv.ParseBool(c.Query("cached")); cached && h.cache != nil {
		list, err := h.cache.Load()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
		return
	}

	list, err := h.svc.ListOrders(c.Request.Context(), c.Query("sort"))
	if err != nil {
		respondError(c, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Save(list); err != nil {
			h.logger.WithError(err).Warn("failed to cache order list")
		}
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) fetchOrder(c *gin.Context) {
	order, err := h.svc.FetchOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) updateOrder(c *gin.Context) {
	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	h.warnItemTotals(c.Param("id"), req.Items)
	res, err := h.svc.UpdateOrder(c.Request.Context(), c.Param("id"), req.HeaderPatch, req.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updateOrderResponse{Success: true, UpdateResult: res})
}

func (h *Handler) replaceItems(c *gin.Context) {
	var req replaceItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ids, err := h.svc.ReplaceOrderItems(c.Request.Context(), c.Param("id"), req.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, replaceItemsResponse{Success: true, ItemIDs: ids})
}

func (h *Handler) listCustomers(c *gin.Context) {
	customers, err := h.svc.ListAllCustomers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

func (h *Handler) lookupCustomer(c *gin.Context) {
	customer, err := h.svc.LookupCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) listDistinct(c *gin.Context) {
	field := c.Param("field")
	if alias, ok := distinctAliases[field]; ok {
		field = alias
	}

	values, err := h.svc.ListDistinct(c.Request.Context(), field)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, values)
}

// warnInvariants журналирует нарушения инвариантов заказа, не отклоняя запрос:
// хранилище их не проверяет, и исторические данные могут им не соответствовать.
// Пустой список позиций сюда не доходит как замечание, его отклоняет репозиторий.
func (h *Handler) warnInvariants(billNo string, draft *domain.Order) {
	for _, err := range draft.ValidateInvariants() {
		if errors.Is(err, domain.ErrItemsRequired) {
			continue
		}
		h.logger.WithError(err).WithFields(log.Fields{
			"bill_no":     billNo,
			"grand_total": draft.GrandTotal.String(),
			"items_total": draft.ItemsTotal().String(),
		}).Warn("order invariant violated")
	}
	h.warnItemTotals(billNo, draft.Items)
}

// warnItemTotals сравнивает total_amt позиций с суммой по цене, скидке и налогу.
func (h *Handler) warnItemTotals(ref string, items []domain.LineItem) {
	for i, item := range items {
		computed := item.ComputeTotal()
		if item.TotalAmt.Equal(computed) {
			continue
		}
		h.logger.WithFields(log.Fields{
			"order":     ref,
			"index":     i,
			"item_name": item.ItemName,
			"total_amt": item.TotalAmt.String(),
			"computed":  computed.String(),
		}).Warn("line item total differs from computed total")
	}
}
