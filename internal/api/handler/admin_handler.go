package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/hijabworld/internal/service"
	"github.com/d60-Lab/hijabworld/pkg/response"
)

// DashboardStats 后台统计
// @Summary 仪表盘统计
// @Tags 管理后台
// @Security BearerAuth
// @Success 200 {object} response.Response{data=service.DashboardStats}
// @Router /api/admin/stats [get]
func (h *Handler) DashboardStats(c *gin.Context) {
	st, err := h.adminService.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, st)
}

// ListUsers 用户列表
// @Summary 用户列表
// @Tags 管理后台
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=service.UserPage}
// @Router /api/admin/users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	page, limit := pageParams(c, "20")
	res, err := h.adminService.ListUsers(c.Request.Context(), page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, res)
}

// GetUser 用户详情
// @Summary 用户详情
// @Tags 管理后台
// @Security BearerAuth
// @Param id path string true "用户ID"
// @Success 200 {object} response.Response{data=model.User}
// @Router /api/admin/users/{id} [get]
func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.adminService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, u)
}

// UpdateUser 修改用户
// @Summary 修改用户资料
// @Tags 管理后台
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "用户ID"
// @Param request body service.UpdateUserInput true "用户资料"
// @Success 200 {object} response.Response{data=model.User}
// @Router /api/admin/users/{id} [put]
func (h *Handler) UpdateUser(c *gin.Context) {
	var req service.UpdateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.adminService.UpdateUser(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessMsg(c, "User updated successfully", u)
}

// DeleteUser 删除用户
// @Summary 删除用户
// @Tags 管理后台
// @Security BearerAuth
// @Param id path string true "用户ID"
// @Success 200 {object} response.Response
// @Router /api/admin/users/{id} [delete]
func (h *Handler) DeleteUser(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	if err := h.adminService.DeleteUser(c.Request.Context(), c.Param("id"), a); err != nil {
		fail(c, err)
		return
	}
	response.SuccessMsg(c, "User deleted successfully", nil)
}

// ListAllOrders 全部订单
// @Summary 全部订单
// @Tags 管理后台
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Param status query string false "状态过滤"
// @Success 200 {object} response.Response{data=service.AdminOrderPage}
// @Router /api/admin/orders [get]
func (h *Handler) ListAllOrders(c *gin.Context) {
	page, limit := pageParams(c, "20")
	res, err := h.adminService.ListOrders(c.Request.Context(), page, limit, c.Query("status"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, res)
}

// UpdateOrderStatus 修改订单状态
// @Summary 修改订单状态
// @Tags 管理后台
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "订单ID"
// @Param request body service.UpdateOrderStatusInput true "目标状态"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Router /api/admin/orders/{id} [put]
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req service.UpdateOrderStatusInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	order, err := h.adminService.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessMsg(c, "Order status updated", order)
}
