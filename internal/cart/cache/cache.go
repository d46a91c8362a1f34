package cache

import (
	"context"
	"errors"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/domain"
)

var ErrCacheMiss = errors.New("cache miss")

type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

// ProductCache holds catalog product details close to the cart service so the
// add-to-cart path rarely needs a synchronous catalog call. Entries are
// written through by the reconciler when product events arrive.
type ProductCache interface {
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
	SetProduct(ctx context.Context, product *domain.Product) error
	InvalidateProduct(ctx context.Context, productID int64) error
}
