package service

import (
	"context"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/product"
)

// ProductService 商品目录管理。
// 库存列表只能整体替换（ReplaceOptions），替换和总库存重算同事务生效，
// 不提供任何直接改单条 stock_quantity 的入口——那是库存协议的事。
type ProductService struct {
	repo  product.Repository
	stock *StockService // 替换列表后刷新缓存用，可为 nil
}

// NewProductService 创建商品服务
func NewProductService(repo product.Repository, stock *StockService) *ProductService {
	return &ProductService{repo: repo, stock: stock}
}

// GetByID 商品详情（含颜色与附加选项）
func (s *ProductService) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// ListOnline 前台商品列表
func (s *ProductService) ListOnline(ctx context.Context) ([]*product.Product, error) {
	return s.repo.ListOnline(ctx)
}

// ListAll 后台商品列表
func (s *ProductService) ListAll(ctx context.Context) ([]*product.Product, error) {
	return s.repo.ListAll(ctx)
}

// Create 新建商品
func (s *ProductService) Create(ctx context.Context, p *product.Product) error {
	if p.Name == "" {
		return validationErrorf("商品名称不能为空")
	}
	if p.Price < 0 {
		return validationErrorf("价格不能为负数")
	}
	if err := validateOptionLists(p.Variants, p.AdditionalOptions); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

// Update 更新基础字段（名称/描述/价格/状态）
func (s *ProductService) Update(ctx context.Context, p *product.Product) error {
	if p.Price < 0 {
		return validationErrorf("价格不能为负数")
	}
	return s.repo.Update(ctx, p)
}

// ReplaceOptions 整体替换颜色/附加选项列表（后台编辑）
func (s *ProductService) ReplaceOptions(ctx context.Context, productID int64, variants []product.Variant, options []product.AdditionalOption) error {
	if err := validateOptionLists(variants, options); err != nil {
		return err
	}
	if err := s.repo.ReplaceOptions(ctx, productID, variants, options); err != nil {
		return err
	}
	if s.stock != nil {
		if _, err := s.stock.RecomputeAggregate(ctx, productID); err != nil {
			return err
		}
	}
	return nil
}

// Delete 删除商品
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func validateOptionLists(variants []product.Variant, options []product.AdditionalOption) error {
	seen := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		if v.ColorName == "" {
			return validationErrorf("颜色名不能为空")
		}
		if v.StockQuantity < 0 {
			return validationErrorf("颜色 %q 的库存不能为负数", v.ColorName)
		}
		if _, dup := seen[v.ColorName]; dup {
			return validationErrorf("颜色名 %q 重复", v.ColorName)
		}
		seen[v.ColorName] = struct{}{}
	}
	seenOpt := make(map[string]struct{}, len(options))
	for _, o := range options {
		if o.Name == "" {
			return validationErrorf("附加选项名不能为空")
		}
		if o.StockQuantity < 0 {
			return validationErrorf("附加选项 %q 的库存不能为负数", o.Name)
		}
		if _, dup := seenOpt[o.Name]; dup {
			return validationErrorf("附加选项名 %q 重复", o.Name)
		}
		seenOpt[o.Name] = struct{}{}
	}
	return nil
}
