package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/product"
)

func TestProductCreateValidation(t *testing.T) {
	repo := newMemProductRepo()
	svc := NewProductService(repo, nil)
	ctx := context.TODO()

	cases := []struct {
		name string
		p    *product.Product
	}{
		{"名称为空", &product.Product{Price: 100}},
		{"价格为负", &product.Product{Name: "外套", Price: -1}},
		{"颜色名重复", &product.Product{Name: "外套", Price: 100, Variants: []product.Variant{
			{ColorName: "black", StockQuantity: 1},
			{ColorName: "black", StockQuantity: 2},
		}}},
		{"库存为负", &product.Product{Name: "外套", Price: 100, Variants: []product.Variant{
			{ColorName: "black", StockQuantity: -1},
		}}},
		{"附加选项名为空", &product.Product{Name: "外套", Price: 100, AdditionalOptions: []product.AdditionalOption{
			{Name: "", StockQuantity: 1},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var verr *ValidationError
			assert.ErrorAs(t, svc.Create(ctx, tc.p), &verr)
		})
	}

	all, _ := svc.ListAll(ctx)
	assert.Empty(t, all)
}

func TestProductReplaceOptionsRecomputesAggregate(t *testing.T) {
	repo := newMemProductRepo()
	stockSvc := NewStockService(repo, nil)
	svc := NewProductService(repo, stockSvc)
	p := seedProduct(repo)
	ctx := context.TODO()

	err := svc.ReplaceOptions(ctx, p.ID,
		[]product.Variant{
			{ColorName: "navy", StockQuantity: 7},
		},
		[]product.AdditionalOption{
			{Name: "gift-wrap", AdditionalPrice: 500, StockQuantity: 2},
		})
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Variants, 1)
	assert.Equal(t, "navy", got.Variants[0].ColorName)
	assert.Equal(t, int64(9), got.AggregateQuantity)

	// 旧颜色名在新列表里不再可用
	_, err = stockSvc.AdjustStock(ctx, []StockItem{
		{ProductID: p.ID, Selector: colorSel("black"), Quantity: 1},
	}, DirectionReduce)
	var optErr *product.OptionNotFoundError
	assert.ErrorAs(t, err, &optErr)
}

func TestProductListOnlineFiltersStatus(t *testing.T) {
	repo := newMemProductRepo()
	svc := NewProductService(repo, nil)
	ctx := context.TODO()

	repo.addProduct(&product.Product{Name: "上架款", Price: 100, Status: 1})
	repo.addProduct(&product.Product{Name: "下架款", Price: 100, Status: 0})

	online, err := svc.ListOnline(ctx)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, "上架款", online[0].Name)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
