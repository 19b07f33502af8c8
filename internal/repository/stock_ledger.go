package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/hijabworld/internal/model"
)

// StockLedger 商品库存台账。扣减是单条条件 UPDATE，不做先读后写。
// 传入事务句柄即可与订单写入共用同一事务。
type StockLedger interface {
	// Reserve 扣减库存，库存不足返回 *InsufficientStockError，商品不存在返回 *ProductNotFoundError
	Reserve(ctx context.Context, productID string, qty int) error
	// Release 归还库存
	Release(ctx context.Context, productID string, qty int) error
}

type stockLedger struct {
	db *gorm.DB
}

func NewStockLedger(db *gorm.DB) StockLedger {
	return &stockLedger{db: db}
}

func (l *stockLedger) Reserve(ctx context.Context, productID string, qty int) error {
	db := l.db.WithContext(ctx)
	res := db.Exec(
		"UPDATE products SET stock = stock - ?, updated_at = ? WHERE id = ? AND stock >= ?",
		qty, time.Now(), productID, qty,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// 未命中：区分商品不存在与库存不足
	var p model.Product
	err := db.Select("id", "stock").Where("id = ?", productID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return err
	}
	return &InsufficientStockError{ProductID: productID, Requested: qty, Available: p.Stock}
}

func (l *stockLedger) Release(ctx context.Context, productID string, qty int) error {
	res := l.db.WithContext(ctx).Exec(
		"UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ?",
		qty, time.Now(), productID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ProductNotFoundError{ProductID: productID}
	}
	return nil
}
