package service

import (
	"errors"
	"fmt"
)

// Kind 业务错误类别，对外暴露为机器可读的 kind 字段
type Kind string

const (
	KindValidation         Kind = "VALIDATION_ERROR"
	KindProductNotFound    Kind = "PRODUCT_NOT_FOUND"
	KindInsufficientStock  Kind = "INSUFFICIENT_STOCK"
	KindOrderNotFound      Kind = "ORDER_NOT_FOUND"
	KindForbidden          Kind = "FORBIDDEN"
	KindInvalidState       Kind = "INVALID_STATE"
	KindGatewayUnavailable Kind = "PAYMENT_GATEWAY_UNAVAILABLE"
	KindPaymentDeclined    Kind = "PAYMENT_DECLINED"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindNotFound           Kind = "NOT_FOUND"
	KindConflict           Kind = "CONFLICT"
)

// Error 业务错误
type Error struct {
	Kind    Kind
	Message string
	// Fields 字段级校验错误
	Fields map[string]string
	// ProductID / Available 仅 InsufficientStock/ProductNotFound 使用
	ProductID string
	Available int
	// RawStatus 网关返回的原始支付状态（PaymentDeclined）
	RawStatus string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is 按 Kind 比较，使 errors.Is(err, ErrOrderNotFound) 成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation         = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrProductNotFound    = &Error{Kind: KindProductNotFound, Message: "product not found"}
	ErrInsufficientStock  = &Error{Kind: KindInsufficientStock, Message: "insufficient stock"}
	ErrOrderNotFound      = &Error{Kind: KindOrderNotFound, Message: "order not found"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrInvalidState       = &Error{Kind: KindInvalidState, Message: "invalid state transition"}
	ErrGatewayUnavailable = &Error{Kind: KindGatewayUnavailable, Message: "payment gateway unavailable"}
	ErrPaymentDeclined    = &Error{Kind: KindPaymentDeclined, Message: "payment declined"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "invalid credentials"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "already exists"}
)

// KindOf 提取错误类别，非业务错误返回空串
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func validationError(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func invalidState(msg string) *Error {
	return &Error{Kind: KindInvalidState, Message: msg}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}
