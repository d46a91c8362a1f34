package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

// StoreUnavailableError marks a transient infrastructure failure. Callers on
// the event path leave the triggering message unacknowledged so the broker
// redelivers it.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("cart store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// ReconcileResult reports what a cross-cart snapshot write touched. UserIDs
// let callers invalidate per-user cart cache entries.
type ReconcileResult struct {
	ItemsAffected int64
	UserIDs       []string
}

// CartRepository defines the interface for cart data operations.
// Consumers define this interface, not the MongoDB implementation.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, item domain.CartItem) error
	UpdateItemQuantity(ctx context.Context, userID string, productID int64, quantity int) error
	RemoveItem(ctx context.Context, userID string, productID int64) error
	DeleteCart(ctx context.Context, userID string) error

	// Reconciliation path: cross-user writes keyed by product, atomic per
	// cart document with respect to other writers of the same cart.
	UpdateProductSnapshot(ctx context.Context, productID int64, snap domain.ProductSnapshot) (ReconcileResult, error)
	MarkProductUnavailable(ctx context.Context, productID int64) (ReconcileResult, error)
}
