package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/hijabworld/internal/service"
	"github.com/d60-Lab/hijabworld/pkg/response"
)

type verifyPaymentRequest struct {
	Reference string `json:"reference"`
	OrderID   string `json:"order_id"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CreateOrder 下单
// @Summary 创建订单并初始化支付
// @Tags 订单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateOrderInput true "购物车与收货地址"
// @Success 201 {object} response.Response{data=service.CreateOrderResult}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/orders [post]
func (h *Handler) CreateOrder(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.orderService.CreateOrder(c.Request.Context(), a, req)
	if err != nil {
		fail(c, err)
		return
	}
	msg := "Order created successfully. Redirecting to payment..."
	if res.PaymentLink == nil {
		msg = "Order created successfully. Please contact support for payment instructions."
	}
	response.Created(c, msg, res)
}

// VerifyPayment 支付回调校验
// @Summary 校验支付结果（公开接口，支付跳转回调）
// @Tags 订单
// @Accept json
// @Produce json
// @Param request body verifyPaymentRequest true "支付参考号（订单号）"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/orders/verify-payment [post]
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	order, err := h.orderService.VerifyPayment(c.Request.Context(), req.Reference)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessMsg(c, "Payment verified successfully", order)
}

// ListMyOrders 我的订单
// @Summary 查询我的订单
// @Tags 订单
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Param status query string false "状态过滤（all 表示全部）"
// @Success 200 {object} response.Response{data=service.OrderPage}
// @Router /api/orders/my-orders [get]
func (h *Handler) ListMyOrders(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	page, limit := pageParams(c, "10")
	res, err := h.orderService.ListMyOrders(c.Request.Context(), a, page, limit, c.Query("status"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, res)
}

// RecentOrders 最近订单
// @Summary 最近订单
// @Tags 订单
// @Security BearerAuth
// @Param limit query int false "数量" default(5)
// @Success 200 {object} response.Response{data=[]model.Order}
// @Router /api/orders/recent [get]
func (h *Handler) RecentOrders(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	orders, err := h.orderService.RecentOrders(c.Request.Context(), a, limit)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, orders)
}

// GetOrder 订单详情
// @Summary 订单详情（本人或管理员）
// @Tags 订单
// @Security BearerAuth
// @Param id path string true "订单ID"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/orders/{id} [get]
func (h *Handler) GetOrder(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"), a)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, order)
}

// CancelOrder 取消订单
// @Summary 取消订单并归还库存
// @Tags 订单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "订单ID"
// @Param request body cancelOrderRequest false "取消原因"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/orders/{id}/cancel [put]
func (h *Handler) CancelOrder(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req cancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	order, err := h.orderService.CancelOrder(c.Request.Context(), c.Param("id"), a, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessMsg(c, "Order cancelled successfully", order)
}
