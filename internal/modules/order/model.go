// README: Order aggregate, status definitions and the single transition table.
package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"fulfil/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var (
	ErrInvalidState     = errors.New("invalid state transition")
	ErrNotFound         = errors.New("order not found")
	ErrConflict         = errors.New("order state conflict")
	ErrBadRequest       = errors.New("bad request")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrAlreadyDelivered = errors.New("order already delivered")
	ErrInvalidBarcode   = errors.New("invalid barcode")
)

const (
	MinShoeSize = 5
	MaxShoeSize = 12
)

type Order struct {
	ID                types.ID        `json:"id"`
	OrderDate         time.Time       `json:"orderDate"`
	CustomerID        types.ID        `json:"customerId"`
	Status            Status          `json:"orderStatus"`
	StatusVersion     int             `json:"statusVersion"`
	FulfilmentStaffID *types.ID       `json:"fulfilmentStaffId"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Discount          decimal.Decimal `json:"discount"`
	ShippingFee       decimal.Decimal `json:"shippingFee"`
	Total             decimal.Decimal `json:"total"`
	ShippingAddressID *types.ID       `json:"shippingAddressId"`
	ContactName       string          `json:"contactName"`
	ContactPhone      string          `json:"contactPhone"`
	ContactEmail      string          `json:"contactEmail"`
	VoucherID         *types.ID       `json:"voucherId"`
	PaymentReference  string          `json:"paymentReference"`
	Items             []Item          `json:"items"`
}

// Item is immutable once created; Price is the product price at checkout.
type Item struct {
	ID        types.ID        `json:"id"`
	OrderID   types.ID        `json:"orderId"`
	ProductID types.ID        `json:"productId"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      decimal.Decimal `json:"size"`
}

// CartLine is a cart row joined with the product's current price.
type CartLine struct {
	ProductID types.ID
	Quantity  int
	Size      decimal.Decimal
	UnitPrice decimal.Decimal
}

type Event struct {
	ID         int64     `json:"id"`
	OrderID    types.ID  `json:"orderId"`
	FromStatus Status    `json:"fromStatus"`
	ToStatus   Status    `json:"toStatus"`
	ActorType  string    `json:"actorType"`
	ActorID    *string   `json:"actorId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Actor identifies who caused a transition.
type Actor struct {
	Type string
	ID   string
}

var SystemActor = Actor{Type: "system"}

// AllowedTransitions represents the order state flow (diagram) as code.
// Delivered and cancelled are terminal.
var AllowedTransitions = map[Status][]Status{
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusProcessing, StatusDelivered, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}
