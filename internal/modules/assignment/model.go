// README: Assignment inputs (order target, warehouses, on-duty staff) and outcomes.
package assignment

import (
	"errors"
	"fmt"
	"time"

	"fulfil/internal/types"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrAddressNotGeocodable = errors.New("shipping address cannot be geocoded")
	ErrNoWarehouse          = errors.New("no warehouse address could be geocoded")
	ErrNoStaffAvailable     = errors.New("no fulfilment staff available")
	ErrInvalidState         = errors.New("order is not processing")
	ErrAssignmentInProgress = errors.New("assignment already in progress")
	ErrConflict             = errors.New("order changed during assignment")

	// errStaffUnavailable means the chosen staff went on break between scoring and commit.
	errStaffUnavailable = errors.New("staff no longer available")
)

const (
	lockKeyPattern     = "assignment:order:%d:lock"
	maxCommitAttempts  = 3
	defaultNormalizeKm = 50.0
	defaultLockTTL     = 30 * time.Second
)

// Target is the order as the heuristic sees it.
type Target struct {
	OrderID           types.ID
	Status            string
	FulfilmentStaffID *types.ID
	HasAddress        bool
	Street            string
	PostalCode        string
}

func (t Target) Address() string {
	return t.Street + " " + t.PostalCode
}

type Warehouse struct {
	ID         types.ID
	Name       string
	Address    string
	PostalCode string
}

func (w Warehouse) FullAddress() string {
	return w.Address + " " + w.PostalCode
}

// Candidate is a fulfilment staff member who is not on break.
type Candidate struct {
	FulfilmentStaffID   types.ID
	WarehouseID         types.ID
	AssignedOrdersCount int
}

type Result struct {
	OrderID           types.ID `json:"orderId"`
	FulfilmentStaffID types.ID `json:"fulfilmentStaffId"`
	WarehouseID       types.ID `json:"warehouseId,omitempty"`
	DistanceKm        float64  `json:"distanceKm"`
	Score             float64  `json:"score"`
	AlreadyAssigned   bool     `json:"alreadyAssigned"`
}

type rankedWarehouse struct {
	Warehouse
	DistanceKm float64
}

func lockKey(orderID types.ID) string {
	return fmt.Sprintf(lockKeyPattern, int64(orderID))
}
