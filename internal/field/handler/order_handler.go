package handler

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/repository"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/service"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/session"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// OrderHandler serves the order listing (with reconciliation) and the
// active-order marker.
type OrderHandler struct {
	orders *service.OrderService
	sess   *session.Manager
}

func NewOrderHandler(orders *service.OrderService, sess *session.Manager) *OrderHandler {
	return &OrderHandler{orders: orders, sess: sess}
}

// List GET /api/v1/orders?date=YYYY-MM-DD
// Runs the merge engine on the online path; falls back to cached history
// when offline. 503 means offline with no cached data for the date.
func (h *OrderHandler) List(c *gin.Context) {
	date := c.Query("date")
	if !dateRe.MatchString(date) {
		Error(c, 400, "date must be YYYY-MM-DD")
		return
	}

	user := h.sess.Current()
	if user == nil {
		Error(c, 401, "not authenticated")
		return
	}

	result, err := h.orders.GetOrders(c.Request.Context(), strconv.Itoa(user.UserID), date)
	if err != nil {
		if errors.Is(err, service.ErrOfflineNoData) {
			Error(c, 503, "offline and no stored orders for this date")
			return
		}
		Error(c, 500, "failed to load orders")
		return
	}

	Success(c, result)
}

// Get GET /api/v1/orders/:id — reads from the current listing document.
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := h.orders.FindOrder(orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			Error(c, 404, "order not found")
			return
		}
		Error(c, 500, "failed to load order")
		return
	}
	Success(c, order)
}

type activateRequest struct {
	Folio string `json:"folio"`
}

// Activate POST /api/v1/orders/:id/activate — arms the active-order marker.
// 409 while a different order is in progress.
func (h *OrderHandler) Activate(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	var req activateRequest
	_ = c.ShouldBindJSON(&req)

	marker, err := h.sess.SetActiveOrder(orderID, req.Folio)
	if err != nil {
		if errors.Is(err, session.ErrOrderInProgress) {
			Error(c, 409, "another order is already in progress")
			return
		}
		Error(c, 500, "failed to set active order")
		return
	}
	Success(c, marker)
}

// ActiveOrder GET /api/v1/orders/active
func (h *OrderHandler) ActiveOrder(c *gin.Context) {
	marker, err := h.sess.ActiveOrder()
	if err != nil {
		Error(c, 500, "failed to read active order")
		return
	}
	Success(c, marker)
}

// Deactivate DELETE /api/v1/orders/active
func (h *OrderHandler) Deactivate(c *gin.Context) {
	if err := h.sess.ClearActiveOrder(); err != nil {
		Error(c, 500, "failed to clear active order")
		return
	}
	Success(c, nil)
}
