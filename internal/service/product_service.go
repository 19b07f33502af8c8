package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/d60-Lab/hijabworld/internal/model"
	"github.com/d60-Lab/hijabworld/internal/repository"
)

var maxProductPrice = decimal.NewFromInt(500000)

// ProductCache 商品读缓存
type ProductCache interface {
	CacheInvalidator
	Fetch(ctx context.Context, id string, load func(context.Context) (*model.Product, error)) (*model.Product, error)
}

// ProductInput 管理员创建/更新商品
type ProductInput struct {
	Name        string          `json:"name" validate:"required,max=100"`
	Description string          `json:"description" validate:"required,max=1000"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" validate:"required,oneof=hijab abaya jalabiya accessory"`
	ImageURL    string          `json:"imageUrl" validate:"omitempty,url"`
	Stock       int             `json:"stock" validate:"min=0"`
	Sizes       []string        `json:"sizes"`
	Colors      []string        `json:"colors"`
	Featured    bool            `json:"featured"`
	Discount    int             `json:"discount" validate:"min=0,max=100"`
}

type ProductQuery struct {
	Category string
	Search   string
	Featured *bool
	Page     int
	Limit    int
}

type ProductPage struct {
	Products   []model.Product `json:"products"`
	Pagination Pagination      `json:"pagination"`
}

// CategorySummary 分类及其商品数
type CategorySummary struct {
	Name          model.ProductCategory `json:"name"`
	Count         int64                 `json:"count"`
	FeaturedCount int64                 `json:"featuredCount"`
}

// ProductService 商品目录
type ProductService interface {
	List(ctx context.Context, q ProductQuery) (*ProductPage, error)
	Categories(ctx context.Context) ([]CategorySummary, error)
	Get(ctx context.Context, id string) (*model.Product, error)
	Create(ctx context.Context, in ProductInput) (*model.Product, error)
	Update(ctx context.Context, id string, in ProductInput) (*model.Product, error)
	Delete(ctx context.Context, id string) error
}

type productService struct {
	repo  repository.ProductRepository
	cache ProductCache
}

func NewProductService(repo repository.ProductRepository, cache ProductCache) ProductService {
	return &productService{repo: repo, cache: cache}
}

func (s *productService) List(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	page, limit := normalizePage(q.Page, q.Limit, 12)
	items, total, err := s.repo.List(ctx, repository.ProductFilter{
		Category: q.Category,
		Search:   q.Search,
		Featured: q.Featured,
		Offset:   (page - 1) * limit,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}
	return &ProductPage{Products: items, Pagination: newPagination(page, limit, total)}, nil
}

// Categories 每个分类取一条，只用分页总数
func (s *productService) Categories(ctx context.Context) ([]CategorySummary, error) {
	featured := true
	out := make([]CategorySummary, 0, len(model.Categories()))
	for _, c := range model.Categories() {
		all, err := s.List(ctx, ProductQuery{Category: string(c), Limit: 1})
		if err != nil {
			return nil, err
		}
		top, err := s.List(ctx, ProductQuery{Category: string(c), Featured: &featured, Limit: 1})
		if err != nil {
			return nil, err
		}
		out = append(out, CategorySummary{
			Name:          c,
			Count:         all.Pagination.Total,
			FeaturedCount: top.Pagination.Total,
		})
	}
	return out, nil
}

func (s *productService) Get(ctx context.Context, id string) (*model.Product, error) {
	var (
		p   *model.Product
		err error
	)
	if s.cache != nil {
		p, err = s.cache.Fetch(ctx, id, func(ctx context.Context) (*model.Product, error) {
			return s.repo.GetByID(ctx, id)
		})
	} else {
		p, err = s.repo.GetByID(ctx, id)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &Error{Kind: KindProductNotFound, Message: "Product not found", ProductID: id}
	}
	return p, err
}

func validateProduct(in ProductInput) error {
	if err := validateStruct("invalid product", in); err != nil {
		return err
	}
	if in.Price.IsNegative() || in.Price.GreaterThan(maxProductPrice) {
		return validationError("invalid product", map[string]string{"price": "must be between 0 and 500000"})
	}
	return nil
}

func (in ProductInput) apply(p *model.Product) {
	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price
	p.Category = model.ProductCategory(in.Category)
	p.ImageURL = in.ImageURL
	p.Stock = in.Stock
	p.Sizes = in.Sizes
	p.Colors = in.Colors
	p.Featured = in.Featured
	p.Discount = in.Discount
}

func (s *productService) Create(ctx context.Context, in ProductInput) (*model.Product, error) {
	if err := validateProduct(in); err != nil {
		return nil, err
	}
	p := &model.Product{}
	in.apply(p)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *productService) Update(ctx context.Context, id string, in ProductInput) (*model.Product, error) {
	if err := validateProduct(in); err != nil {
		return nil, err
	}
	p := &model.Product{ID: id}
	in.apply(p)
	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &Error{Kind: KindProductNotFound, Message: "Product not found", ProductID: id}
		}
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *productService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &Error{Kind: KindProductNotFound, Message: "Product not found", ProductID: id}
		}
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
	return nil
}
