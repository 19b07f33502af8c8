package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/hijabworld/internal/service"
	"github.com/d60-Lab/hijabworld/pkg/response"
)

// Signup 注册
// @Summary 用户注册
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "注册信息"
// @Success 201 {object} response.Response{data=service.AuthResult}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/auth/signup [post]
func (h *Handler) Signup(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, "User registered successfully", res)
}

// Login 登录
// @Summary 用户登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "登录信息"
// @Success 200 {object} response.Response{data=service.AuthResult}
// @Failure 401 {object} response.Response
// @Router /api/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req service.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, res)
}

// Me 当前用户
// @Summary 当前登录用户
// @Tags 认证
// @Security BearerAuth
// @Success 200 {object} response.Response{data=model.User}
// @Router /api/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	u, err := h.authService.Me(c.Request.Context(), a.ID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, u)
}
