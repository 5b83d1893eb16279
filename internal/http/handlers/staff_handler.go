// README: Staff handlers (onboarding, break toggling, workload).
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fulfil/internal/modules/staff"
	"fulfil/internal/types"
)

type StaffService interface {
	Onboard(ctx context.Context, cmd staff.OnboardCommand) (*staff.OnboardResult, error)
	SetOnBreak(ctx context.Context, staffID types.ID, onBreak bool) error
	Workload(ctx context.Context) ([]staff.Workload, error)
}

type StaffHandler struct {
	staff StaffService
}

func NewStaffHandler(svc StaffService) *StaffHandler {
	return &StaffHandler{staff: svc}
}

type onboardRequest struct {
	FullName     string `json:"fullName"`
	Role         string `json:"role"`
	WarehouseID  *int64 `json:"warehouseId"`
	AssignedArea string `json:"assignedArea"`
	VehicleInfo  string `json:"vehicleInfo"`
}

type breakRequest struct {
	OnBreak *bool `json:"onBreak"`
}

func (h *StaffHandler) Onboard(c *gin.Context) {
	var req onboardRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd := staff.OnboardCommand{
		FullName:     strings.TrimSpace(req.FullName),
		Role:         staff.Role(strings.TrimSpace(req.Role)),
		AssignedArea: strings.TrimSpace(req.AssignedArea),
		VehicleInfo:  strings.TrimSpace(req.VehicleInfo),
	}
	if req.WarehouseID != nil {
		cmd.WarehouseID = types.IDPtr(types.ID(*req.WarehouseID))
	}
	res, err := h.staff.Onboard(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, res)
}

func (h *StaffHandler) SetOnBreak(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req breakRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.OnBreak == nil {
		writeError(c, http.StatusBadRequest, "onBreak is required")
		return
	}
	if err := h.staff.SetOnBreak(c.Request.Context(), id, *req.OnBreak); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"staffId": id, "onBreak": *req.OnBreak})
}

func (h *StaffHandler) Workload(c *gin.Context) {
	rows, err := h.staff.Workload(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if rows == nil {
		rows = []staff.Workload{}
	}
	writeJSON(c, http.StatusOK, rows)
}
