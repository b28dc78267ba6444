// controller/admin_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calltoleap/gatekeeper/audit"
	gate_errors "github.com/calltoleap/gatekeeper/errors"
	"github.com/calltoleap/gatekeeper/service"
	"github.com/calltoleap/gatekeeper/util"
	helper_util "github.com/calltoleap/gatekeeper/util/helper"
)

type AdminController struct {
	adminService service.IAdminService
	auditService audit.Service
}

func NewAdminController(adminService service.IAdminService, auditService audit.Service) *AdminController {
	return &AdminController{
		adminService: adminService,
		auditService: auditService,
	}
}

// RegisterRoutes registers the admin API routes
func (ac *AdminController) RegisterRoutes(r *gin.RouterGroup) {
	attempts := r.Group("/attempts")
	{
		attempts.POST("/reset", ac.ResetAttempts)
		attempts.POST("/reset-role", ac.ResetAttemptsForRole)
	}
	r.GET("/audit", ac.QueryAudit)
}

type resetAttemptsRequest struct {
	Identity string `json:"identity" binding:"required"`
}

// ResetAttempts endpoint
func (ac *AdminController) ResetAttempts(c *gin.Context) {
	var req resetAttemptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid reset request", err)
		return
	}

	ac.adminService.ResetAttempts(c, req.Identity)
	c.Status(http.StatusNoContent)
}

type resetRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// ResetAttemptsForRole endpoint
func (ac *AdminController) ResetAttemptsForRole(c *gin.Context) {
	var req resetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid reset request", err)
		return
	}

	count, err := ac.adminService.ResetAttemptsForRole(c, req.Role)
	if err != nil {
		if errors.Is(err, gate_errors.ErrRoleNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Role not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to reset attempts", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"reset": count})
}

// QueryAudit endpoint
func (ac *AdminController) QueryAudit(c *gin.Context) {
	from, to, err := helper_util.GetTimeWindowParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid time window", err)
		return
	}

	events, err := ac.auditService.QueryEvents(c, from, to, c.Query("identity"), c.Query("email"))
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query audit trail", err)
		return
	}
	if events == nil {
		events = []audit.MembershipEvent{}
	}

	c.JSON(http.StatusOK, events)
}
