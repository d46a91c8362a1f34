// Package reconcile brings denormalized product snapshots in cart line items
// back in line with the catalog after a product changes. Both operations are
// plain overwrites, so redelivered events converge to the same state.
package reconcile

import (
	"context"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/cache"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/domain"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/repository"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/events"
	"go.uber.org/zap"
)

type Reconciler struct {
	repo     repository.CartRepository
	products cache.ProductCache
	carts    cache.CartCache
	logger   *zap.Logger
}

// NewReconciler wires the core against its collaborators. The reconciler
// holds no state between invocations; the store's own document-level
// concurrency control is the unit of mutual exclusion.
func NewReconciler(repo repository.CartRepository, products cache.ProductCache, carts cache.CartCache, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		repo:     repo,
		products: products,
		carts:    carts,
		logger:   logger,
	}
}

// ApplyProductUpdated overwrites the product snapshot on every line item
// referencing the product, across all users, and writes the fresh product
// through to the cache. Returns the number of line items updated.
//
// A store failure is transient: the caller leaves the triggering message
// unacknowledged and the broker redelivers it. Cache failures only widen the
// staleness window and are never fatal.
func (r *Reconciler) ApplyProductUpdated(ctx context.Context, productID int64, product domain.Product) (int64, error) {
	result, err := r.repo.UpdateProductSnapshot(ctx, productID, product.Snapshot())
	if err != nil {
		return 0, err
	}

	if err := r.products.SetProduct(ctx, &product); err != nil {
		r.logger.Warn("product cache refresh failed",
			zap.Int64("product_id", productID),
			zap.Error(err),
		)
	}

	r.invalidateCarts(ctx, result.UserIDs)

	r.logger.Info("reconciled cart items for updated product",
		zap.Int64("product_id", productID),
		zap.Int64("items_updated", result.ItemsAffected),
		zap.Int("carts_affected", len(result.UserIDs)),
		zap.String("correlation_id", events.CorrelationID(ctx)),
	)
	return result.ItemsAffected, nil
}

// ApplyProductDeleted marks every line item referencing the product
// unavailable and drops the product from the cache. Items stay in the cart so
// the user is warned before checkout and removes them explicitly. Deleting a
// product no cart references returns zero, not an error.
func (r *Reconciler) ApplyProductDeleted(ctx context.Context, productID int64) (int64, error) {
	result, err := r.repo.MarkProductUnavailable(ctx, productID)
	if err != nil {
		return 0, err
	}

	if err := r.products.InvalidateProduct(ctx, productID); err != nil {
		r.logger.Warn("product cache invalidation failed",
			zap.Int64("product_id", productID),
			zap.Error(err),
		)
	}

	r.invalidateCarts(ctx, result.UserIDs)

	r.logger.Info("marked cart items unavailable for deleted product",
		zap.Int64("product_id", productID),
		zap.Int64("items_marked", result.ItemsAffected),
		zap.Int("carts_affected", len(result.UserIDs)),
		zap.String("correlation_id", events.CorrelationID(ctx)),
	)
	return result.ItemsAffected, nil
}

func (r *Reconciler) invalidateCarts(ctx context.Context, userIDs []string) {
	for _, userID := range userIDs {
		if err := r.carts.Delete(ctx, userID); err != nil {
			r.logger.Warn("cart cache invalidation failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}
}
