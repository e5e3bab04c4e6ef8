package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/product"
)

func colorSel(name string) product.Selector {
	return product.Selector{ColorName: name}
}

func additionalSel(name string) product.Selector {
	return product.Selector{Additional: name}
}

func seedProduct(repo *memProductRepo) *product.Product {
	return repo.addProduct(&product.Product{
		Name:   "测试卫衣",
		Price:  19900,
		Status: 1,
		Variants: []product.Variant{
			{ColorName: "black", StockQuantity: 5, Position: 0},
			{ColorName: "cream", StockQuantity: 3, Position: 1},
		},
		AdditionalOptions: []product.AdditionalOption{
			{Name: "gift-wrap", AdditionalPrice: 500, StockQuantity: 10, Position: 0},
		},
	})
}

func TestAdjustStockReduce(t *testing.T) {
	repo := newMemProductRepo()
	p := seedProduct(repo)
	svc := NewStockService(repo, nil)

	before := repo.aggregateOf(p.ID)

	result, err := svc.AdjustStock(context.TODO(), []StockItem{
		{ProductID: p.ID, Selector: colorSel("black"), Quantity: 3},
	}, DirectionReduce)
	require.NoError(t, err)
	require.Len(t, result.Updates, 1)

	assert.Equal(t, int64(5), result.Updates[0].PreviousStock)
	assert.Equal(t, int64(2), result.Updates[0].NewStock)
	assert.Equal(t, int64(2), repo.stockOf(p.ID, colorSel("black")))
	// 冗余总库存与明细同步变化
	assert.Equal(t, before-3, repo.aggregateOf(p.ID))
}

func TestAdjustStockInsufficient(t *testing.T) {
	repo := newMemProductRepo()
	p := seedProduct(repo)
	svc := NewStockService(repo, nil)

	_, err := svc.AdjustStock(context.TODO(), []StockItem{
		{ProductID: p.ID, Selector: colorSel("cream"), Quantity: 10},
	}, DirectionReduce)

	var insufficient *product.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(3), insufficient.AvailableStock)
	assert.Equal(t, int64(10), insufficient.RequestedQuantity)
	// 拒绝的调整不能留下任何痕迹
	assert.Equal(t, int64(3), repo.stockOf(p.ID, colorSel("cream")))
	assert.Equal(t, int64(18), repo.aggregateOf(p.ID))
}

func TestAdjustStockProductNotFound(t *testing.T) {
	repo := newMemProductRepo()
	svc := NewStockService(repo, nil)

	_, err := svc.AdjustStock(context.TODO(), []StockItem{
		{ProductID: 404, Selector: colorSel("black"), Quantity: 1},
	}, DirectionReduce)

	var notFound *product.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(404), notFound.ProductID)
}

func TestAdjustStockOptionNotFound(t *testing.T) {
	repo := newMemProductRepo()
	p := seedProduct(repo)
	svc := NewStockService(repo, nil)

	_, err := svc.AdjustStock(context.TODO(), []StockItem{
		{ProductID: p.ID, Selector: colorSel("magenta"), Quantity: 1},
	}, DirectionReduce)

	var optErr *product.OptionNotFoundError
	require.ErrorAs(t, err, &optErr)
	assert.ElementsMatch(t, []string{"black", "cream", "gift-wrap"}, optErr.ValidNames)
}

func TestAdjustStockValidation(t *testing.T) {
	repo := newMemProductRepo()
	p := seedProduct(repo)
	svc := NewStockService(repo, nil)

	cases := []struct {
		name      string
		items     []StockItem
		direction Direction
	}{
		{"空列表", nil, DirectionReduce},
		{"未知方向", []StockItem{{ProductID: p.ID, Selector: colorSel("black"), Quantity: 1}}, Direction("drop")},
		{"数量为零", []StockItem{{ProductID: p.ID, Selector: colorSel("black"), Quantity: 0}}, DirectionReduce},
		{"数量为负", []StockItem{{ProductID: p.ID, Selector: colorSel("black"), Quantity: -2}}, DirectionRestore},
		{"选择器为空", []StockItem{{ProductID: p.ID, Quantity: 1}}, DirectionReduce},
		{"选择器重复指定", []StockItem{{ProductID: p.ID, Selector: product.Selector{ColorName: "black", Additional: "gift-wrap"}, Quantity: 1}}, DirectionReduce},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AdjustStock(context.TODO(), tc.items, tc.direction)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
	// 校验失败不触库存
	assert.Equal(t, int64(5), repo.stockOf(p.ID, colorSel("black")))
}

func TestAdjustStockRoundTrip(t *testing.T) {
	repo := newMemProductRepo()
	p := seedProduct(repo)
	svc := NewStockService(repo, nil)

	items := []StockItem{
		{ProductID: p.ID, Selector: colorSel("black"), Quantity: 2},
		{ProductID: p.ID, Selector: additionalSel("gift-wrap"), Quantity: 4},
	}
	_, err := svc.AdjustStock(context.TODO(), items, DirectionReduce)
	require.NoError(t, err)
	_, err = svc.AdjustStock(context.TODO(), items, DirectionRestore)
	require.NoError(t, err)

	assert.Equal(t, int64(5), repo.stockOf(p.ID, colorSel("black")))
	assert.Equal(t, int64(10), repo.stockOf(p.ID, additionalSel("gift-wrap")))
	assert.Equal(t, int64(18), repo.aggregateOf(p.ID))
}

func TestAdjustStockCoalescesDuplicates(t *testing.T) {
	repo := newMemProductRepo()
	p := seedProduct(repo)
	svc := NewStockService(repo, nil)

	// 同一（商品, 颜色）两条各 2，应合并为一条 4
	result, err := svc.AdjustStock(context.TODO(), []StockItem{
		{ProductID: p.ID, Selector: colorSel("black"), Quantity: 2},
		{ProductID: p.ID, Selector: colorSel("black"), Quantity: 2},
	}, DirectionReduce)
	require.NoError(t, err)

	require.Len(t, result.Updates, 1)
	assert.Equal(t, int64(5), result.Updates[0].PreviousStock)
	assert.Equal(t, int64(1), result.Updates[0].NewStock)
}

func TestAdjustStockCoalescedGuard(t *testing.T) {
	repo := newMemProductRepo()
	p := seedProduct(repo)
	svc := NewStockService(repo, nil)

	// 合并后 2+2=4 > cream 的 3，必须整体拒绝而不是先成后败
	_, err := svc.AdjustStock(context.TODO(), []StockItem{
		{ProductID: p.ID, Selector: colorSel("cream"), Quantity: 2},
		{ProductID: p.ID, Selector: colorSel("cream"), Quantity: 2},
	}, DirectionReduce)

	var insufficient *product.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(3), repo.stockOf(p.ID, colorSel("cream")))
}

func TestAdjustStockPrefixCompensation(t *testing.T) {
	repo := newMemProductRepo()
	p := seedProduct(repo)
	svc := NewStockService(repo, nil)

	// 第一条成功，第二条库存不足 -> 第一条必须被回补
	_, err := svc.AdjustStock(context.TODO(), []StockItem{
		{ProductID: p.ID, Selector: colorSel("black"), Quantity: 2},
		{ProductID: p.ID, Selector: colorSel("cream"), Quantity: 99},
	}, DirectionReduce)

	var insufficient *product.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(5), repo.stockOf(p.ID, colorSel("black")))
	assert.Equal(t, int64(3), repo.stockOf(p.ID, colorSel("cream")))
	assert.Equal(t, int64(18), repo.aggregateOf(p.ID))
}

func TestAdjustStockConcurrentReduce(t *testing.T) {
	repo := newMemProductRepo()
	p := seedProduct(repo)
	svc := NewStockService(repo, nil)

	// black 库存 5，两个并发请求各扣 3：恰好一个成功
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AdjustStock(context.TODO(), []StockItem{
				{ProductID: p.ID, Selector: colorSel("black"), Quantity: 3},
			}, DirectionReduce)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *product.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, int64(2), insufficient.AvailableStock)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(2), repo.stockOf(p.ID, colorSel("black")))
	assert.Equal(t, int64(15), repo.aggregateOf(p.ID))
}

func TestRecomputeAggregateIdempotent(t *testing.T) {
	repo := newMemProductRepo()
	p := seedProduct(repo)
	svc := NewStockService(repo, nil)

	first, err := svc.RecomputeAggregate(context.TODO(), p.ID)
	require.NoError(t, err)
	second, err := svc.RecomputeAggregate(context.TODO(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(18), first)
	assert.Equal(t, first, second)
}

func TestRestoreHasNoUpperGuard(t *testing.T) {
	repo := newMemProductRepo()
	p := seedProduct(repo)
	svc := NewStockService(repo, nil)

	result, err := svc.AdjustStock(context.TODO(), []StockItem{
		{ProductID: p.ID, Selector: colorSel("black"), Quantity: 1000},
	}, DirectionRestore)
	require.NoError(t, err)
	assert.Equal(t, int64(1005), result.Updates[0].NewStock)
}
