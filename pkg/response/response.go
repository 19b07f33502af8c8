package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int               `json:"code"`
	Kind    string            `json:"kind,omitempty"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

const (
	KindValidation   = "VALIDATION_ERROR"
	KindUnauthorized = "UNAUTHORIZED"
	KindForbidden    = "FORBIDDEN"
	KindNotFound     = "NOT_FOUND"
	KindTooMany      = "RATE_LIMITED"
	KindInternal     = "INTERNAL"
)

// Success 200
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// SuccessMsg 200 with a custom message
func SuccessMsg(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: message, Data: data})
}

// Created 201
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: message, Data: data})
}

// Fail writes an error envelope and aborts the chain.
func Fail(c *gin.Context, status int, kind, message string, fields map[string]string, data interface{}) {
	c.AbortWithStatusJSON(status, Response{Code: status, Kind: kind, Message: message, Data: data, Fields: fields})
}

// BadRequest 400
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, KindValidation, message, nil, nil)
}

// ValidationFailed 400 with per-field details
func ValidationFailed(c *gin.Context, message string, fields map[string]string) {
	Fail(c, http.StatusBadRequest, KindValidation, message, fields, nil)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, message string) {
	Fail(c, http.StatusUnauthorized, KindUnauthorized, message, nil, nil)
}

// Forbidden 403
func Forbidden(c *gin.Context, message string) {
	Fail(c, http.StatusForbidden, KindForbidden, message, nil, nil)
}

// NotFound 404
func NotFound(c *gin.Context, message string) {
	Fail(c, http.StatusNotFound, KindNotFound, message, nil, nil)
}

// TooManyRequests 429
func TooManyRequests(c *gin.Context) {
	Fail(c, http.StatusTooManyRequests, KindTooMany, "too many requests", nil, nil)
}

// InternalError 500，错误写入 gin 上下文供日志/Sentry 中间件采集
func InternalError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	Fail(c, http.StatusInternalServerError, KindInternal, "internal server error", nil, nil)
}
