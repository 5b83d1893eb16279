// README: Order handlers (checkout, lifecycle transitions, barcode scan, assignment).
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fulfil/internal/modules/assignment"
	"fulfil/internal/modules/order"
	"fulfil/internal/types"
)

type OrderService interface {
	Checkout(ctx context.Context, cmd order.CheckoutCommand) (*order.Order, error)
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	ListByCustomer(ctx context.Context, customerID types.ID) ([]*order.Order, error)
	Pack(ctx context.Context, cmd order.StatusCommand) (*order.Order, error)
	Unpack(ctx context.Context, cmd order.StatusCommand) (*order.Order, error)
	Deliver(ctx context.Context, cmd order.StatusCommand) (*order.Order, error)
	ScanBarcode(ctx context.Context, cmd order.ScanCommand) (*order.Order, error)
	Cancel(ctx context.Context, cmd order.StatusCommand) (*order.Order, error)
	UpdateStatus(ctx context.Context, cmd order.UpdateStatusCommand) (*order.Order, error)
	Delete(ctx context.Context, id types.ID) error
}

type AssignmentService interface {
	Assign(ctx context.Context, orderID types.ID) (*assignment.Result, error)
	Reassign(ctx context.Context, orderID types.ID) (*assignment.Result, error)
}

type OrderHandler struct {
	orders   OrderService
	assigner AssignmentService
}

func NewOrderHandler(orders OrderService, assigner AssignmentService) *OrderHandler {
	return &OrderHandler{orders: orders, assigner: assigner}
}

type checkoutRequest struct {
	CustomerID        int64  `json:"customerId"`
	ShippingAddressID *int64 `json:"shippingAddressId"`
	ContactName       string `json:"contactName"`
	ContactPhone      string `json:"contactPhone"`
	ContactEmail      string `json:"contactEmail"`
	VoucherCode       string `json:"voucherCode"`
	PaymentReference  string `json:"paymentReference"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type scanRequest struct {
	Barcode string `json:"barcode"`
}

func (h *OrderHandler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.CustomerID <= 0 {
		writeError(c, http.StatusBadRequest, "customerId is required")
		return
	}
	cmd := order.CheckoutCommand{
		CustomerID:       types.ID(req.CustomerID),
		ContactName:      strings.TrimSpace(req.ContactName),
		ContactPhone:     strings.TrimSpace(req.ContactPhone),
		ContactEmail:     strings.TrimSpace(req.ContactEmail),
		VoucherCode:      strings.TrimSpace(req.VoucherCode),
		PaymentReference: req.PaymentReference,
	}
	if req.ShippingAddressID != nil {
		cmd.ShippingAddressID = types.IDPtr(types.ID(*req.ShippingAddressID))
	}
	o, err := h.orders.Checkout(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *OrderHandler) ListByCustomer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	orders, err := h.orders.ListByCustomer(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if orders == nil {
		orders = []*order.Order{}
	}
	writeJSON(c, http.StatusOK, orders)
}

func (h *OrderHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.orders.Delete(c.Request.Context(), id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.orders.UpdateStatus(c.Request.Context(), order.UpdateStatusCommand{
		OrderID: id,
		Target:  order.Status(strings.TrimSpace(req.Status)),
		Actor:   callerActor(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *OrderHandler) Pack(c *gin.Context) {
	h.transition(c, h.orders.Pack)
}

func (h *OrderHandler) Unpack(c *gin.Context) {
	h.transition(c, h.orders.Unpack)
}

func (h *OrderHandler) Deliver(c *gin.Context) {
	h.transition(c, h.orders.Deliver)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	h.transition(c, h.orders.Cancel)
}

func (h *OrderHandler) transition(c *gin.Context, fn func(context.Context, order.StatusCommand) (*order.Order, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := fn(c.Request.Context(), order.StatusCommand{OrderID: id, Actor: callerActor(c)})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *OrderHandler) Scan(c *gin.Context) {
	var req scanRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.orders.ScanBarcode(c.Request.Context(), order.ScanCommand{
		Barcode: strings.TrimSpace(req.Barcode),
		Actor:   callerActor(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *OrderHandler) Assign(c *gin.Context) {
	h.assign(c, h.assigner.Assign)
}

func (h *OrderHandler) Reassign(c *gin.Context) {
	h.assign(c, h.assigner.Reassign)
}

func (h *OrderHandler) assign(c *gin.Context, fn func(context.Context, types.ID) (*assignment.Result, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := fn(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}
