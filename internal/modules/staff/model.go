// README: Staff accounts, their fulfilment/delivery specialisation and workload rows.
package staff

import (
	"errors"
	"time"

	"fulfil/internal/types"
)

type Role string

const (
	RoleFulfilment Role = "fulfilment"
	RoleDelivery   Role = "delivery"
	RoleAdmin      Role = "admin"
)

var (
	ErrNotFound   = errors.New("staff not found")
	ErrConflict   = errors.New("staff email already exists")
	ErrBadRequest = errors.New("bad request")
)

const passwordLength = 16

func (r Role) Valid() bool {
	return r == RoleFulfilment || r == RoleDelivery || r == RoleAdmin
}

type Staff struct {
	ID        types.ID  `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type OnboardCommand struct {
	FullName     string
	Role         Role
	WarehouseID  *types.ID
	AssignedArea string
	VehicleInfo  string
}

// OnboardResult carries the mailbox password once; it is never stored.
type OnboardResult struct {
	Staff             Staff     `json:"staff"`
	FulfilmentStaffID *types.ID `json:"fulfilmentStaffId,omitempty"`
	DeliveryAgentID   *types.ID `json:"deliveryAgentId,omitempty"`
	TemporaryPassword string    `json:"temporaryPassword"`
}

type Workload struct {
	FulfilmentStaffID   types.ID  `json:"fulfilmentStaffId"`
	StaffID             types.ID  `json:"staffId"`
	FullName            string    `json:"fullName"`
	WarehouseID         *types.ID `json:"warehouseId"`
	WarehouseName       string    `json:"warehouseName"`
	AssignedArea        string    `json:"assignedArea"`
	AssignedOrdersCount int       `json:"assignedOrdersCount"`
	OnBreak             bool      `json:"onBreak"`
}
