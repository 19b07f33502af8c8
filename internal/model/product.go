package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductCategory 商品分类
type ProductCategory string

const (
	CategoryHijab     ProductCategory = "hijab"
	CategoryAbaya     ProductCategory = "abaya"
	CategoryJalabiya  ProductCategory = "jalabiya"
	CategoryAccessory ProductCategory = "accessory"
)

// Categories 全部商品分类，按展示顺序
func Categories() []ProductCategory {
	return []ProductCategory{CategoryHijab, CategoryAbaya, CategoryJalabiya, CategoryAccessory}
}

// Product 商品，stock 只通过条件更新修改
type Product struct {
	ID          string          `json:"id" gorm:"type:char(36);primaryKey"`
	Name        string          `json:"name" gorm:"type:varchar(100);not null"`
	Description string          `json:"description" gorm:"type:text"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Category    ProductCategory `json:"category" gorm:"type:varchar(16);index;not null"`
	ImageURL    string          `json:"imageUrl"`
	Stock       int             `json:"stock" gorm:"not null;default:0;check:stock >= 0"`
	Sizes       []string        `json:"sizes" gorm:"serializer:json"`
	Colors      []string        `json:"colors" gorm:"serializer:json"`
	Featured    bool            `json:"featured" gorm:"index;default:false"`
	Discount    int             `json:"discount" gorm:"default:0"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (Product) TableName() string {
	return "products"
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
