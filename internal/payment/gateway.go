// Package payment 支付网关适配，只暴露 initialize/verify 两个操作
package payment

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable 传输、协议或配置错误。支付被拒不是错误，通过 VerifyResult 返回
var ErrUnavailable = errors.New("payment gateway unavailable")

// UnavailableError 记录失败的操作与原因
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

func unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}

// CustomField 网关收据页展示的自定义字段
type CustomField struct {
	DisplayName  string `json:"display_name"`
	VariableName string `json:"variable_name"`
	Value        string `json:"value"`
}

type Metadata struct {
	OrderID      string        `json:"order_id"`
	CustomerName string        `json:"customer_name"`
	CustomFields []CustomField `json:"custom_fields,omitempty"`
}

// InitializeRequest 金额单位为最小货币单位（NGN 为 kobo）
type InitializeRequest struct {
	AmountMinor int64
	Currency    string
	Email       string
	Reference   string
	CallbackURL string
	Metadata    Metadata
}

type InitializeResult struct {
	RedirectURL string
	Reference   string
	AccessCode  string
}

type VerifyResult struct {
	Succeeded     bool
	TransactionID string
	Reference     string
	RawStatus     string
	AmountMinor   int64
}

// Gateway 支付网关接口
type Gateway interface {
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
}
