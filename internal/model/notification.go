package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationType 通知类型
type NotificationType string

const (
	NotificationOrderConfirm   NotificationType = "order_confirm"
	NotificationPaymentSuccess NotificationType = "payment_success"
	NotificationSystem         NotificationType = "system"
)

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
)

// NotificationData 关联订单信息
type NotificationData struct {
	OrderID string `json:"orderId,omitempty"`
	Link    string `json:"link,omitempty"`
}

// Notification 站内通知
type Notification struct {
	ID        string               `json:"id" gorm:"type:char(36);primaryKey"`
	UserID    string               `json:"userId" gorm:"type:char(36);index:idx_notifications_user_created;not null"`
	Type      NotificationType     `json:"type" gorm:"type:varchar(32);not null"`
	Title     string               `json:"title" gorm:"not null"`
	Message   string               `json:"message" gorm:"not null"`
	Data      NotificationData     `json:"data" gorm:"serializer:json"`
	Priority  NotificationPriority `json:"priority" gorm:"type:varchar(8);default:medium"`
	Read      bool                 `json:"read" gorm:"column:is_read;index;default:false"`
	ReadAt    *time.Time           `json:"readAt,omitempty"`
	CreatedAt time.Time            `json:"createdAt" gorm:"index:idx_notifications_user_created"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	return nil
}

// AllModels 迁移列表
func AllModels() []interface{} {
	return []interface{}{&User{}, &Product{}, &Order{}, &OrderItem{}, &Notification{}}
}
