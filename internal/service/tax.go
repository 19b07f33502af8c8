package service

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TaxPolicy 计算订单税额
type TaxPolicy interface {
	Tax(subtotal decimal.Decimal) decimal.Decimal
}

// PassthroughTax 税额等于小计（沿用现有业务规则，待产品确认）
type PassthroughTax struct{}

func (PassthroughTax) Tax(subtotal decimal.Decimal) decimal.Decimal { return subtotal }

// NoTax 不计税
type NoTax struct{}

func (NoTax) Tax(decimal.Decimal) decimal.Decimal { return decimal.Zero }

// TaxPolicyByName passthrough | none
func TaxPolicyByName(name string) (TaxPolicy, error) {
	switch name {
	case "", "passthrough":
		return PassthroughTax{}, nil
	case "none":
		return NoTax{}, nil
	}
	return nil, fmt.Errorf("unknown tax policy %q", name)
}
