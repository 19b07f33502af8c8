package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus 订单生命周期状态
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Cancellable 仅 pending/confirmed 可由用户取消
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

// PaymentStatus 支付子记录状态
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// PaymentMethod 支付方式
type PaymentMethod string

const (
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodBank     PaymentMethod = "bank"
	PaymentMethodUSSD     PaymentMethod = "ussd"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

const DefaultCountry = "Nigeria"

// Order 订单聚合
type Order struct {
	ID              string          `json:"id" gorm:"type:char(36);primaryKey"`
	OrderNumber     string          `json:"orderNumber" gorm:"type:varchar(32);uniqueIndex;not null"`
	UserID          string          `json:"userId" gorm:"type:char(36);index:idx_orders_user_created;not null"`
	Items           []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ShippingAddress ShippingAddress `json:"shippingAddress" gorm:"embedded;embeddedPrefix:ship_"`
	Payment         Payment         `json:"payment" gorm:"embedded;embeddedPrefix:payment_"`
	Status          OrderStatus     `json:"status" gorm:"type:varchar(16);index;not null;default:pending"`

	TotalAmount    decimal.Decimal `json:"totalAmount" gorm:"type:decimal(12,2);not null"`
	ShippingFee    decimal.Decimal `json:"shippingFee" gorm:"type:decimal(12,2);not null;default:0"`
	TaxAmount      decimal.Decimal `json:"taxAmount" gorm:"type:decimal(12,2);not null;default:0"`
	DiscountAmount decimal.Decimal `json:"discountAmount" gorm:"type:decimal(12,2);not null;default:0"`
	FinalAmount    decimal.Decimal `json:"finalAmount" gorm:"type:decimal(12,2);not null"`

	Notes              string     `json:"notes"`
	TrackingNumber     string     `json:"trackingNumber"`
	DeliveredAt        *time.Time `json:"deliveredAt,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CancellationReason string     `json:"cancellationReason"`

	CreatedAt time.Time `json:"createdAt" gorm:"index:idx_orders_user_created"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// OrderItem 订单行，下单时快照商品信息
type OrderItem struct {
	ID        uint            `json:"-" gorm:"primaryKey"`
	OrderID   string          `json:"-" gorm:"type:char(36);index;not null"`
	Position  int             `json:"-" gorm:"not null"`
	ProductID string          `json:"product" gorm:"type:char(36);not null"`
	Name      string          `json:"name" gorm:"not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Image     string          `json:"image"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// LineTotal price × quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ShippingAddress 收货地址，country 缺省 Nigeria
type ShippingAddress struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country" gorm:"default:Nigeria"`
}

// FullName first + last
func (a ShippingAddress) FullName() string {
	return a.FirstName + " " + a.LastName
}

// Payment 支付子记录
type Payment struct {
	Status        PaymentStatus   `json:"status" gorm:"type:varchar(16);index;not null;default:pending"`
	Method        PaymentMethod   `json:"method" gorm:"type:varchar(16);not null;default:card"`
	Reference     string          `json:"reference"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Currency      string          `json:"currency" gorm:"type:varchar(3);not null;default:NGN"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
}

// Subtotal Σ(price × qty)
func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// ComputeFinal total + shipping + tax - discount
func (o *Order) ComputeFinal() decimal.Decimal {
	return o.TotalAmount.Add(o.ShippingFee).Add(o.TaxAmount).Sub(o.DiscountAmount)
}

// BeforeCreate 主键与订单号兜底
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.OrderNumber == "" {
		o.OrderNumber = FallbackOrderNumber()
	}
	if o.ShippingAddress.Country == "" {
		o.ShippingAddress.Country = DefaultCountry
	}
	for i := range o.Items {
		o.Items[i].Position = i
	}
	return nil
}
