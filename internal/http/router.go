// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fulfil/internal/http/handlers"
	"fulfil/internal/http/middleware"
	"fulfil/internal/infra"
)

// Services bundles what the API needs; each field is satisfied by a module Service.
type Services struct {
	Orders     handlers.OrderService
	Assignment handlers.AssignmentService
	Deliveries handlers.DeliveryService
	Vouchers   handlers.VoucherService
	Staff      handlers.StaffService
}

func NewRouter(svc Services, verifier infra.TokenVerifier, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(middleware.Recovery(logger), middleware.RequestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	const (
		customer = middleware.RoleCustomer
		staffR   = middleware.RoleStaff
		admin    = middleware.RoleAdmin
		agent    = middleware.RoleDeliveryAgent
	)
	role := middleware.RequireRole

	api := r.Group("/api", middleware.Auth(verifier))

	orderHandler := handlers.NewOrderHandler(svc.Orders, svc.Assignment)
	api.POST("/orders", role(customer), orderHandler.Checkout)
	api.POST("/orders/scan", role(agent), orderHandler.Scan)
	api.GET("/orders/:id", orderHandler.Get)
	api.DELETE("/orders/:id", role(customer, admin), orderHandler.Delete)
	api.PUT("/orders/:id/status", role(admin, staffR), orderHandler.UpdateStatus)
	api.POST("/orders/:id/pack", role(staffR, admin), orderHandler.Pack)
	api.POST("/orders/:id/unpack", role(staffR, admin), orderHandler.Unpack)
	api.POST("/orders/:id/deliver", role(agent), orderHandler.Deliver)
	api.POST("/orders/:id/cancel", orderHandler.Cancel)
	api.POST("/orders/:id/assign", role(admin), orderHandler.Assign)
	api.POST("/orders/:id/reassign", role(admin), orderHandler.Reassign)
	api.GET("/customers/:id/orders", orderHandler.ListByCustomer)

	deliveryHandler := handlers.NewDeliveryHandler(svc.Deliveries)
	api.POST("/deliveries", role(admin, staffR), deliveryHandler.AssignAgent)
	api.GET("/deliveries/:id", deliveryHandler.Get)
	api.PUT("/deliveries/:id/status", role(agent, admin), deliveryHandler.UpdateStatus)
	api.GET("/delivery-agents/:id/orders", deliveryHandler.AgentOrders)
	api.POST("/delivery-agents/:id/orders", role(admin, staffR), deliveryHandler.AddOrder)
	api.DELETE("/delivery-agents/:id/orders/:orderId", role(admin, staffR), deliveryHandler.RemoveOrder)
	api.GET("/delivery-agents/:id/performance", deliveryHandler.Performance)
	api.PUT("/delivery-agents/:id/availability", role(agent, admin), deliveryHandler.SetAvailability)

	voucherHandler := handlers.NewVoucherHandler(svc.Vouchers)
	api.POST("/vouchers", role(admin), voucherHandler.Create)
	api.GET("/vouchers/:code", voucherHandler.Validate)
	api.POST("/vouchers/:code/use", voucherHandler.Use)

	staffHandler := handlers.NewStaffHandler(svc.Staff)
	api.POST("/staff", role(admin), staffHandler.Onboard)
	api.GET("/staff/workload", role(admin, staffR), staffHandler.Workload)
	api.PUT("/staff/:id/break", role(staffR, admin), staffHandler.SetOnBreak)

	return r
}
