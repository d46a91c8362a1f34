package service

import (
	"context"
	"errors"
	"time"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/cache"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/domain"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrProductUnavailable = errors.New("product is not available")

// CatalogClient resolves product details when the local cache misses.
type CatalogClient interface {
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
}

type CartService struct {
	repo     repository.CartRepository
	carts    cache.CartCache
	products cache.ProductCache
	catalog  CatalogClient
	logger   *zap.Logger
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCartService(
	repo repository.CartRepository,
	carts cache.CartCache,
	products cache.ProductCache,
	catalog CatalogClient,
	logger *zap.Logger,
) *CartService {
	return &CartService{
		repo:     repo,
		carts:    carts,
		products: products,
		catalog:  catalog,
		logger:   logger,
	}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {

		cart, err := s.carts.Get(ctx, userID)
		if err == nil {
			return cart, nil // cart is in cache
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("cart cache get error", zap.Error(err)) // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, userID)
		if errGet != nil && errors.Is(errGet, repository.ErrCartNotFound) { // not found cart return empty cart
			return &domain.Cart{
				UserID:    userID,
				Items:     nil,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		// set cache
		go func() {
			if errSet := s.carts.Set(context.Background(), userID, cart); errSet != nil {
				s.logger.Warn("cart cache set error", zap.Error(errSet))
			}
		}()

		return cart, nil // cart was not in cache, return it from repo
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem resolves the product through the cache-then-catalog chain and
// stores a line item embedding the snapshot taken now. Reconciliation keeps
// that snapshot in line with later catalog changes.
func (s *CartService) AddItem(ctx context.Context, userID string, productID int64, quantity int) error {
	product, err := s.resolveProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !product.Active {
		return ErrProductUnavailable
	}

	item := domain.CartItem{
		ProductID: productID,
		Quantity:  quantity,
		Product:   product.Snapshot(),
	}

	if errAdd := s.repo.AddItem(ctx, userID, item); errAdd != nil {
		s.logger.Error("repo add item error", zap.Error(errAdd))
		return errAdd
	}

	s.invalidateCart(userID)
	return nil
}

// UpdateQuantity sets the quantity of a line item; anything below one removes
// the item entirely.
func (s *CartService) UpdateQuantity(ctx context.Context, userID string, productID int64, quantity int) error {
	if quantity < 1 {
		return s.RemoveItem(ctx, userID, productID)
	}

	if errUpdate := s.repo.UpdateItemQuantity(ctx, userID, productID, quantity); errUpdate != nil {
		s.logger.Error("repo update item quantity error", zap.Error(errUpdate))
		return errUpdate
	}

	s.invalidateCart(userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID string, productID int64) error {
	if errRemove := s.repo.RemoveItem(ctx, userID, productID); errRemove != nil {
		s.logger.Error("repo remove item error", zap.Error(errRemove))
		return errRemove
	}

	s.invalidateCart(userID)
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if errDelete := s.repo.DeleteCart(ctx, userID); errDelete != nil {
		s.logger.Error("repo delete cart error", zap.Error(errDelete))
		return errDelete
	}

	s.invalidateCart(userID)
	return nil
}

func (s *CartService) resolveProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("product cache get error", zap.Error(err))
	}

	product, err = s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	if errSet := s.products.SetProduct(ctx, product); errSet != nil {
		s.logger.Warn("product cache set error", zap.Error(errSet))
	}

	return product, nil
}

func (s *CartService) invalidateCart(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.carts.Delete(ctx, userID); err != nil {
		s.logger.Warn("cart cache invalidation error",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
