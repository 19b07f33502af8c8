package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/hijabworld/internal/cache"
	"github.com/d60-Lab/hijabworld/internal/model"
	"github.com/d60-Lab/hijabworld/internal/repository"
)

func newProductFixture(t *testing.T) (ProductService, *miniredis.Miniredis) {
	t.Helper()
	db := setupDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewProductService(repository.NewProductRepository(db), cache.NewProductCache(rdb, time.Minute)), mr
}

func validProduct() ProductInput {
	return ProductInput{
		Name:        "Jersey Hijab",
		Description: "Breathable everyday jersey",
		Price:       decimal.NewFromInt(4500),
		Category:    "hijab",
		Stock:       20,
		Sizes:       []string{"S", "M"},
		Colors:      []string{"black", "nude"},
	}
}

func TestProductService_CRUDWithCache(t *testing.T) {
	svc, mr := newProductFixture(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, validProduct())
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jersey Hijab", got.Name)
	assert.Equal(t, []string{"S", "M"}, got.Sizes)
	assert.True(t, mr.Exists("product:"+p.ID))

	in := validProduct()
	in.Name = "Jersey Hijab Premium"
	in.Stock = 5
	updated, err := svc.Update(ctx, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Stock)
	assert.False(t, mr.Exists("product:"+p.ID))

	got, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jersey Hijab Premium", got.Name)

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err = svc.Get(ctx, p.ID)
	assert.True(t, errors.Is(err, ErrProductNotFound))
	assert.True(t, errors.Is(svc.Delete(ctx, p.ID), ErrProductNotFound))
}

func TestProductService_Validation(t *testing.T) {
	svc, _ := newProductFixture(t)

	tests := []struct {
		name  string
		edit  func(*ProductInput)
		field string
	}{
		{"missing name", func(in *ProductInput) { in.Name = "" }, "name"},
		{"bad category", func(in *ProductInput) { in.Category = "shoes" }, "category"},
		{"negative stock", func(in *ProductInput) { in.Stock = -1 }, "stock"},
		{"price too high", func(in *ProductInput) { in.Price = decimal.NewFromInt(500001) }, "price"},
		{"negative price", func(in *ProductInput) { in.Price = decimal.NewFromInt(-1) }, "price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validProduct()
			tt.edit(&in)
			_, err := svc.Create(context.Background(), in)
			var e *Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, KindValidation, e.Kind)
			assert.Contains(t, e.Fields, tt.field)
		})
	}
}

func TestProductService_List(t *testing.T) {
	svc, _ := newProductFixture(t)
	ctx := context.Background()

	for _, name := range []string{"Silk Hijab", "Chiffon Hijab", "Open Abaya"} {
		in := validProduct()
		in.Name = name
		if name == "Open Abaya" {
			in.Category = "abaya"
			in.Featured = true
		}
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, ProductQuery{Category: "hijab"})
	require.NoError(t, err)
	assert.Len(t, page.Products, 2)
	assert.Equal(t, int64(2), page.Pagination.Total)

	featured := true
	page, err = svc.List(ctx, ProductQuery{Featured: &featured})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Open Abaya", page.Products[0].Name)

	page, err = svc.List(ctx, ProductQuery{Search: "silk", Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, 1, page.Pagination.Limit)
}

func TestProductService_Categories(t *testing.T) {
	svc, _ := newProductFixture(t)
	ctx := context.Background()

	for i, c := range []string{"hijab", "hijab", "abaya"} {
		in := validProduct()
		in.Category = c
		in.Featured = i == 0
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	got, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []CategorySummary{
		{Name: model.CategoryHijab, Count: 2, FeaturedCount: 1},
		{Name: model.CategoryAbaya, Count: 1},
		{Name: model.CategoryJalabiya},
		{Name: model.CategoryAccessory},
	}, got)
}
