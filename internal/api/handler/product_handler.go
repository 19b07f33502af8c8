package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/hijabworld/internal/service"
	"github.com/d60-Lab/hijabworld/pkg/response"
)

// ListProducts 商品列表
// @Summary 商品列表
// @Tags 商品
// @Param category query string false "分类"
// @Param search query string false "关键字"
// @Param featured query bool false "精选"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(12)
// @Success 200 {object} response.Response{data=service.ProductPage}
// @Router /api/products [get]
func (h *Handler) ListProducts(c *gin.Context) {
	page, limit := pageParams(c, "12")
	q := service.ProductQuery{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Page:     page,
		Limit:    limit,
	}
	if v, err := strconv.ParseBool(c.Query("featured")); err == nil {
		q.Featured = &v
	}
	res, err := h.productService.List(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, res)
}

// ListCategories 商品分类
// @Summary 商品分类及数量
// @Tags 商品
// @Success 200 {object} response.Response{data=[]service.CategorySummary}
// @Router /api/products/categories [get]
func (h *Handler) ListCategories(c *gin.Context) {
	res, err := h.productService.Categories(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, res)
}

// GetProduct 商品详情
// @Summary 商品详情
// @Tags 商品
// @Param id path string true "商品ID"
// @Success 200 {object} response.Response{data=model.Product}
// @Failure 404 {object} response.Response
// @Router /api/products/{id} [get]
func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.productService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, p)
}

// ListAdminProducts 后台商品列表
// @Summary 商品列表（管理员）
// @Tags 管理后台
// @Security BearerAuth
// @Param category query string false "分类"
// @Param search query string false "关键字"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=service.ProductPage}
// @Router /api/admin/products [get]
func (h *Handler) ListAdminProducts(c *gin.Context) {
	page, limit := pageParams(c, "20")
	res, err := h.productService.List(c.Request.Context(), service.ProductQuery{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, res)
}

// CreateProduct 新建商品
// @Summary 新建商品（管理员）
// @Tags 管理后台
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ProductInput true "商品信息"
// @Success 201 {object} response.Response{data=model.Product}
// @Failure 400 {object} response.Response
// @Router /api/admin/products [post]
func (h *Handler) CreateProduct(c *gin.Context) {
	var req service.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.productService.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, "Product created successfully", p)
}

// UpdateProduct 更新商品
// @Summary 更新商品（管理员）
// @Tags 管理后台
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "商品ID"
// @Param request body service.ProductInput true "商品信息"
// @Success 200 {object} response.Response{data=model.Product}
// @Router /api/admin/products/{id} [put]
func (h *Handler) UpdateProduct(c *gin.Context) {
	var req service.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.productService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessMsg(c, "Product updated successfully", p)
}

// DeleteProduct 删除商品
// @Summary 删除商品（管理员）
// @Tags 管理后台
// @Security BearerAuth
// @Param id path string true "商品ID"
// @Success 200 {object} response.Response
// @Router /api/admin/products/{id} [delete]
func (h *Handler) DeleteProduct(c *gin.Context) {
	if err := h.productService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	response.SuccessMsg(c, "Product deleted successfully", nil)
}
