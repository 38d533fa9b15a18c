package service

import (
	"context"

	"github.com/fdyytu1/store-dc/internal/model"
	"github.com/fdyytu1/store-dc/internal/pkg/cache"
	"github.com/fdyytu1/store-dc/internal/repository"
)

// ProductListing pairs a catalog entry with its derived stock count
// for shop listings.
type ProductListing struct {
	Product    *model.Product
	StockCount int
}

// ProductService is the catalog-facing service: product lookup with a
// best-effort cache, listings with derived stock counts, and admin
// stock management.
type ProductService struct {
	stockRepo *repository.StockRepository
	cache     cache.Cache
	ttls      CacheTTLs
}

// NewProductService creates a new ProductService instance.
func NewProductService(stockRepo *repository.StockRepository, c cache.Cache, ttls CacheTTLs) *ProductService {
	return &ProductService{
		stockRepo: stockRepo,
		cache:     c,
		ttls:      ttls,
	}
}

func productCacheKey(code string) string { return "product:" + code }

// GetProduct retrieves a catalog entry, preferring the cache.
func (s *ProductService) GetProduct(ctx context.Context, code string) (*model.Product, error) {
	if v, ok := s.cache.Get(productCacheKey(code)); ok {
		if p, ok := v.(*model.Product); ok {
			return p, nil
		}
	}

	p, err := s.stockRepo.GetProduct(ctx, code)
	if err != nil {
		return nil, err
	}

	s.cache.Set(productCacheKey(code), p, s.ttls.Product)
	return p, nil
}

// CreateProduct adds a catalog entry.
func (s *ProductService) CreateProduct(ctx context.Context, code, name string, price int64) (*model.Product, error) {
	if price <= 0 {
		return nil, ErrInvalidAmount
	}

	p, err := s.stockRepo.CreateProduct(ctx, code, name, price)
	if err != nil {
		return nil, err
	}

	s.cache.Set(productCacheKey(code), p, s.ttls.Product)
	return p, nil
}

// ListProducts returns the catalog with derived stock counts.
func (s *ProductService) ListProducts(ctx context.Context) ([]ProductListing, error) {
	products, err := s.stockRepo.GetAllProducts(ctx)
	if err != nil {
		return nil, err
	}

	listings := make([]ProductListing, 0, len(products))
	for _, p := range products {
		count, err := s.stockRepo.GetStockCount(ctx, p.Code)
		if err != nil {
			return nil, err
		}
		listings = append(listings, ProductListing{Product: p, StockCount: count})
	}

	return listings, nil
}

// AddStock inserts one available unit for a product. The product must
// exist.
func (s *ProductService) AddStock(ctx context.Context, productCode, content, addedBy string) (*model.StockItem, error) {
	if _, err := s.GetProduct(ctx, productCode); err != nil {
		return nil, err
	}
	return s.stockRepo.AddStock(ctx, productCode, content, addedBy)
}

// DeleteStock marks available units deleted. Sold items cannot be
// deleted while still attributed.
func (s *ProductService) DeleteStock(ctx context.Context, productCode string, itemIDs []int64) error {
	return s.stockRepo.UpdateStatus(ctx, productCode, itemIDs, model.StockDeleted, nil)
}

// GetAvailableStock retrieves exactly count available units.
func (s *ProductService) GetAvailableStock(ctx context.Context, code string, count int) ([]*model.StockItem, error) {
	return s.stockRepo.GetAvailableStock(ctx, code, count)
}

// GetStockCount returns the number of available units for a product.
func (s *ProductService) GetStockCount(ctx context.Context, code string) (int, error) {
	return s.stockRepo.GetStockCount(ctx, code)
}

// UpdateStatus transitions a batch of stock items all-or-nothing.
func (s *ProductService) UpdateStatus(ctx context.Context, code string, itemIDs []int64, newStatus string, buyerID *string) error {
	return s.stockRepo.UpdateStatus(ctx, code, itemIDs, newStatus, buyerID)
}
