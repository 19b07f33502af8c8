package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/hijabworld/internal/api/middleware"
	"github.com/d60-Lab/hijabworld/internal/service"
	"github.com/d60-Lab/hijabworld/pkg/response"
)

// Handler HTTP 处理器
type Handler struct {
	orderService        service.OrderService
	productService      service.ProductService
	authService         service.AuthService
	notificationService service.NotificationService
	adminService        service.AdminService
}

func New(
	orders service.OrderService,
	products service.ProductService,
	auth service.AuthService,
	notifications service.NotificationService,
	admin service.AdminService,
) *Handler {
	return &Handler{
		orderService:        orders,
		productService:      products,
		authService:         auth,
		notificationService: notifications,
		adminService:        admin,
	}
}

var kindStatus = map[service.Kind]int{
	service.KindValidation:         http.StatusBadRequest,
	service.KindProductNotFound:    http.StatusNotFound,
	service.KindInsufficientStock:  http.StatusBadRequest,
	service.KindOrderNotFound:      http.StatusNotFound,
	service.KindForbidden:          http.StatusForbidden,
	service.KindInvalidState:       http.StatusBadRequest,
	service.KindGatewayUnavailable: http.StatusInternalServerError,
	service.KindPaymentDeclined:    http.StatusBadRequest,
	service.KindUnauthorized:       http.StatusUnauthorized,
	service.KindNotFound:           http.StatusNotFound,
	service.KindConflict:           http.StatusConflict,
}

// fail 把业务错误映射为 HTTP 状态与统一响应
func fail(c *gin.Context, err error) {
	var e *service.Error
	if !errors.As(err, &e) {
		response.InternalError(c, err)
		return
	}
	status, ok := kindStatus[e.Kind]
	if !ok {
		response.InternalError(c, err)
		return
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	var data interface{}
	switch e.Kind {
	case service.KindInsufficientStock:
		data = gin.H{"product": e.ProductID, "available": e.Available}
	case service.KindProductNotFound:
		data = gin.H{"product": e.ProductID}
	case service.KindPaymentDeclined:
		data = gin.H{"status": e.RawStatus}
	}
	response.Fail(c, status, string(e.Kind), e.Message, e.Fields, data)
}

// actor 取当前登录用户，路由未挂 Auth 时返回 401
func actor(c *gin.Context) (service.Actor, bool) {
	a, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "Not authorized")
	}
	return a, ok
}

func pageParams(c *gin.Context, defLimit string) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", defLimit))
	return page, limit
}
