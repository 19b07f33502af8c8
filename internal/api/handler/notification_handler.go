package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/hijabworld/pkg/response"
)

// ListNotifications 通知列表
// @Summary 我的通知
// @Tags 通知
// @Security BearerAuth
// @Param read query bool false "按已读过滤"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=service.NotificationPage}
// @Router /api/notifications [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	page, limit := pageParams(c, "20")
	var read *bool
	if v, err := strconv.ParseBool(c.Query("read")); err == nil {
		read = &v
	}
	res, err := h.notificationService.List(c.Request.Context(), a.ID, read, page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, res)
}

// MarkNotificationRead 标记已读
// @Summary 标记单条通知已读
// @Tags 通知
// @Security BearerAuth
// @Param id path string true "通知ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/notifications/{id}/read [put]
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	if err := h.notificationService.MarkRead(c.Request.Context(), c.Param("id"), a.ID); err != nil {
		fail(c, err)
		return
	}
	response.SuccessMsg(c, "Notification marked as read", nil)
}

// MarkAllNotificationsRead 全部已读
// @Summary 全部标记已读
// @Tags 通知
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/notifications/read-all [put]
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	n, err := h.notificationService.MarkAllRead(c.Request.Context(), a.ID)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessMsg(c, "All notifications marked as read", gin.H{"updated": n})
}

// DeleteNotification 删除通知
// @Summary 删除通知
// @Tags 通知
// @Security BearerAuth
// @Param id path string true "通知ID"
// @Success 200 {object} response.Response
// @Router /api/notifications/{id} [delete]
func (h *Handler) DeleteNotification(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	if err := h.notificationService.Delete(c.Request.Context(), c.Param("id"), a.ID); err != nil {
		fail(c, err)
		return
	}
	response.SuccessMsg(c, "Notification deleted", nil)
}

// NotificationStats 通知统计
// @Summary 通知统计
// @Tags 通知
// @Security BearerAuth
// @Success 200 {object} response.Response{data=repository.NotificationStats}
// @Router /api/notifications/stats [get]
func (h *Handler) NotificationStats(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	st, err := h.notificationService.Stats(c.Request.Context(), a.ID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, st)
}
