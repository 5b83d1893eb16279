// README: Delivery handlers (agent assignment, status tracking, agent queues and performance).
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fulfil/internal/modules/delivery"
	"fulfil/internal/types"
)

type DeliveryService interface {
	AssignAgent(ctx context.Context, cmd delivery.AssignCommand) (*delivery.Delivery, error)
	Get(ctx context.Context, id types.ID) (*delivery.Delivery, error)
	UpdateStatus(ctx context.Context, cmd delivery.UpdateStatusCommand) (*delivery.Delivery, error)
	AgentOrders(ctx context.Context, agentID types.ID) ([]delivery.AgentOrder, error)
	AddOrderToAgent(ctx context.Context, agentID, orderID types.ID) (*delivery.Delivery, error)
	RemoveOrderFromAgent(ctx context.Context, agentID, orderID types.ID) error
	Performance(ctx context.Context, agentID types.ID) (delivery.Performance, error)
	SetAvailability(ctx context.Context, agentID types.ID, available bool) error
}

type DeliveryHandler struct {
	deliveries DeliveryService
}

func NewDeliveryHandler(deliveries DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{deliveries: deliveries}
}

type assignAgentRequest struct {
	OrderID         int64 `json:"orderId"`
	DeliveryAgentID int64 `json:"deliveryAgentId"`
}

type agentOrderRequest struct {
	OrderID int64 `json:"orderId"`
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

func (h *DeliveryHandler) AssignAgent(c *gin.Context) {
	var req assignAgentRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.OrderID <= 0 || req.DeliveryAgentID <= 0 {
		writeError(c, http.StatusBadRequest, "orderId and deliveryAgentId are required")
		return
	}
	d, err := h.deliveries.AssignAgent(c.Request.Context(), delivery.AssignCommand{
		OrderID: types.ID(req.OrderID),
		AgentID: types.ID(req.DeliveryAgentID),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, d)
}

func (h *DeliveryHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	d, err := h.deliveries.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *DeliveryHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.deliveries.UpdateStatus(c.Request.Context(), delivery.UpdateStatusCommand{
		DeliveryID: id,
		Status:     delivery.Status(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *DeliveryHandler) AgentOrders(c *gin.Context) {
	agentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	orders, err := h.deliveries.AgentOrders(c.Request.Context(), agentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if orders == nil {
		orders = []delivery.AgentOrder{}
	}
	writeJSON(c, http.StatusOK, orders)
}

func (h *DeliveryHandler) AddOrder(c *gin.Context) {
	agentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req agentOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.OrderID <= 0 {
		writeError(c, http.StatusBadRequest, "orderId is required")
		return
	}
	d, err := h.deliveries.AddOrderToAgent(c.Request.Context(), agentID, types.ID(req.OrderID))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, d)
}

func (h *DeliveryHandler) RemoveOrder(c *gin.Context) {
	agentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderId")
	if !ok {
		return
	}
	if err := h.deliveries.RemoveOrderFromAgent(c.Request.Context(), agentID, orderID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DeliveryHandler) Performance(c *gin.Context) {
	agentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.deliveries.Performance(c.Request.Context(), agentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *DeliveryHandler) SetAvailability(c *gin.Context) {
	agentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req availabilityRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Available == nil {
		writeError(c, http.StatusBadRequest, "available is required")
		return
	}
	if err := h.deliveries.SetAvailability(c.Request.Context(), agentID, *req.Available); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"deliveryAgentId": agentID, "available": *req.Available})
}
