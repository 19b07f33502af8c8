package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/hijabworld/internal/model"
	"github.com/d60-Lab/hijabworld/pkg/logger"
)

// OrderFilter 订单列表过滤
type OrderFilter struct {
	UserID string
	Status model.OrderStatus
	Offset int
	Limit  int
}

// PaymentSuccess 支付成功时写入的网关信息
type PaymentSuccess struct {
	TransactionID string
	Reference     string
	PaidAt        time.Time
}

// OrderRepository 订单仓储接口
type OrderRepository interface {
	// CreateWithReservations 同一事务内写订单并逐行扣减库存，任一行失败整体回滚
	CreateWithReservations(ctx context.Context, order *model.Order) error

	// GetByID 根据主键查询订单（含订单行）
	GetByID(ctx context.Context, id string) (*model.Order, error)

	// GetByOrderNumber 根据订单号查询
	GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)

	// List 分页查询，按创建时间倒序
	List(ctx context.Context, f OrderFilter) ([]model.Order, int64, error)

	// MarkPaymentSuccessful pending → successful，返回是否发生了状态迁移。
	// 订单状态仅在 pending 时推进到 confirmed
	MarkPaymentSuccessful(ctx context.Context, orderNumber string, p PaymentSuccess) (bool, error)

	// MarkPaymentFailed pending → failed。订单状态仅在 pending/confirmed 时回到 pending，
	// 管理员已推进的状态不回退
	MarkPaymentFailed(ctx context.Context, orderNumber string) (bool, error)

	// CancelAndRelease 条件更新为 cancelled 并归还库存，状态已变化返回 ErrConflict
	CancelAndRelease(ctx context.Context, order *model.Order, reason string, at time.Time) error

	// UpdateStatus 管理员修正订单状态，条件为当前状态仍是 from，否则返回 ErrConflict
	UpdateStatus(ctx context.Context, id string, from, to model.OrderStatus, trackingNumber string, at time.Time) error

	// Count 统计订单数量
	Count(ctx context.Context) (int64, error)

	// TotalSales 支付成功订单的 totalAmount 之和
	TotalSales(ctx context.Context) (decimal.Decimal, error)
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateWithReservations(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return translate(err)
		}
		ledger := NewStockLedger(tx)
		for _, it := range order.Items {
			if err := ledger.Reserve(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *orderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return r.first(ctx, "order_number = ?", orderNumber)
}

func (r *orderRepository) first(ctx context.Context, query string, arg interface{}) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where(query, arg).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *orderRepository) List(ctx context.Context, f OrderFilter) ([]model.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if f.Limit <= 0 {
		f.Limit = 10
	}

	var orders []model.Order
	err := q.Preload("Items", orderedItems).
		Order("created_at DESC").
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) MarkPaymentSuccessful(ctx context.Context, orderNumber string, p PaymentSuccess) (bool, error) {
	// 只推进 pending 订单，管理员已推进的状态保持不变
	status := gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
		model.OrderStatusPending, model.OrderStatusConfirmed)
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_number = ? AND payment_status = ? AND status <> ?",
			orderNumber, model.PaymentStatusPending, model.OrderStatusCancelled).
		Updates(map[string]interface{}{
			"payment_status":         model.PaymentStatusSuccessful,
			"payment_transaction_id": p.TransactionID,
			"payment_reference":      p.Reference,
			"payment_paid_at":        p.PaidAt,
			"status":                 status,
			"updated_at":             time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepository) MarkPaymentFailed(ctx context.Context, orderNumber string) (bool, error) {
	status := gorm.Expr("CASE WHEN status IN ? THEN ? ELSE status END",
		[]model.OrderStatus{model.OrderStatusPending, model.OrderStatusConfirmed}, model.OrderStatusPending)
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_number = ? AND payment_status = ? AND status <> ?",
			orderNumber, model.PaymentStatusPending, model.OrderStatusCancelled).
		Updates(map[string]interface{}{
			"payment_status": model.PaymentStatusFailed,
			"status":         status,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepository) CancelAndRelease(ctx context.Context, order *model.Order, reason string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Order{}).
			Where("id = ? AND status IN ?", order.ID, []model.OrderStatus{model.OrderStatusPending, model.OrderStatusConfirmed}).
			Updates(map[string]interface{}{
				"status":              model.OrderStatusCancelled,
				"cancelled_at":        at,
				"cancellation_reason": reason,
				"updated_at":          at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		ledger := NewStockLedger(tx)
		for _, it := range order.Items {
			err := ledger.Release(ctx, it.ProductID, it.Quantity)
			var nf *ProductNotFoundError
			if errors.As(err, &nf) {
				// 商品已下架删除，无处归还
				logger.Warn("release stock skipped, product gone",
					zap.String("order", order.OrderNumber), zap.String("product", it.ProductID))
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, from, to model.OrderStatus, trackingNumber string, at time.Time) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
	}
	if trackingNumber != "" {
		updates["tracking_number"] = trackingNumber
	}
	switch to {
	case model.OrderStatusDelivered:
		updates["delivered_at"] = at
	case model.OrderStatusCancelled:
		updates["cancelled_at"] = at
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (r *orderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).Count(&count).Error
	return count, err
}

func (r *orderRepository) TotalSales(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	row := r.db.WithContext(ctx).Model(&model.Order{}).
		Select("SUM(total_amount)").
		Where("payment_status = ?", model.PaymentStatusSuccessful).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
