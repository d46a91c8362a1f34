package consumer

import (
	"context"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/domain"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/reconcile"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/events"
)

// RegisterProductHandlers binds the product event types to the reconciliation
// core. Event types on the topic that concern other services are left
// unregistered on purpose and end up dead-lettered.
func RegisterProductHandlers(c *Consumer, rec *reconcile.Reconciler) {
	c.Register(events.TypeProductUpdated, productUpdatedHandler(rec))
	c.Register(events.TypeProductDeleted, productDeletedHandler(rec))
}

func productUpdatedHandler(rec *reconcile.Reconciler) Handler {
	return func(ctx context.Context, env events.Envelope) error {
		productID, err := env.ProductID()
		if err != nil {
			return err
		}

		payload, err := env.ProductUpdated()
		if err != nil {
			return err
		}

		product := domain.Product{
			ID:            productID,
			Name:          payload.Name,
			Description:   payload.Description,
			Price:         payload.Price,
			Currency:      payload.Currency,
			StockQuantity: payload.StockQuantity,
			Category:      payload.Category,
			ImageURL:      payload.ImageURL,
			Active:        payload.Active,
		}

		_, err = rec.ApplyProductUpdated(ctx, productID, product)
		return err
	}
}

func productDeletedHandler(rec *reconcile.Reconciler) Handler {
	return func(ctx context.Context, env events.Envelope) error {
		productID, err := env.ProductID()
		if err != nil {
			return err
		}

		_, err = rec.ApplyProductDeleted(ctx, productID)
		return err
	}
}
