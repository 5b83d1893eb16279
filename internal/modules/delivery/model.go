// README: Delivery records, agents and the delivery status flow.
package delivery

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"fulfil/internal/types"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusFailed         Status = "failed"
)

var (
	ErrNotFound       = errors.New("delivery not found")
	ErrOrderNotFound  = errors.New("order not found")
	ErrAgentNotFound  = errors.New("delivery agent not found")
	ErrInvalidState   = errors.New("invalid delivery status transition")
	ErrActiveDelivery = errors.New("order already has an active delivery")
	ErrConflict       = errors.New("delivery state conflict")
	ErrBadRequest     = errors.New("bad request")
)

const defaultETADays = 2

// AllowedTransitions: a failed delivery can be retried by moving it back to pending.
var AllowedTransitions = map[Status][]Status{
	StatusPending:        {StatusOutForDelivery, StatusDelivered, StatusFailed},
	StatusOutForDelivery: {StatusDelivered, StatusFailed},
	StatusFailed:         {StatusPending},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOutForDelivery, StatusDelivered, StatusFailed:
		return true
	}
	return false
}

type Delivery struct {
	ID                    types.ID   `json:"id"`
	OrderID               types.ID   `json:"orderId"`
	DeliveryAgentID       types.ID   `json:"deliveryAgentId"`
	Status                Status     `json:"status"`
	EstimatedDeliveryDate time.Time  `json:"estimatedDeliveryDate"`
	ActualDeliveryDate    *time.Time `json:"actualDeliveryDate"`
	TrackingID            uuid.UUID  `json:"trackingId"`
	CreatedAt             time.Time  `json:"createdAt"`
}

// OnTime reports whether a delivered parcel arrived no later than estimated.
func (d *Delivery) OnTime() bool {
	return d.Status == StatusDelivered && d.ActualDeliveryDate != nil &&
		!d.ActualDeliveryDate.After(d.EstimatedDeliveryDate)
}

type Agent struct {
	ID          types.ID `json:"id"`
	StaffID     types.ID `json:"staffId"`
	VehicleInfo string   `json:"vehicleInfo"`
	IsAvailable bool     `json:"isAvailable"`
}

// AgentOrder is one order an agent currently carries, via its active delivery.
type AgentOrder struct {
	OrderID               types.ID  `json:"orderId"`
	OrderStatus           string    `json:"orderStatus"`
	DeliveryID            types.ID  `json:"deliveryId"`
	DeliveryStatus        Status    `json:"deliveryStatus"`
	TrackingID            uuid.UUID `json:"trackingId"`
	EstimatedDeliveryDate time.Time `json:"estimatedDeliveryDate"`
}

type Performance struct {
	AgentID             types.ID `json:"agentId"`
	TotalDeliveries     int      `json:"totalDeliveries"`
	CompletedDeliveries int      `json:"completedDeliveries"`
	OnTimeDeliveries    int      `json:"onTimeDeliveries"`
	OnTimePercentage    float64  `json:"onTimePercentage"`
}

// ComputePerformance divides on-time deliveries by all deliveries, not by completed ones.
func ComputePerformance(agentID types.ID, deliveries []*Delivery) Performance {
	p := Performance{AgentID: agentID, TotalDeliveries: len(deliveries)}
	for _, d := range deliveries {
		if d.Status == StatusDelivered {
			p.CompletedDeliveries++
		}
		if d.OnTime() {
			p.OnTimeDeliveries++
		}
	}
	if p.TotalDeliveries > 0 {
		p.OnTimePercentage = float64(p.OnTimeDeliveries) / float64(p.TotalDeliveries) * 100
	}
	return p
}
