package service

import (
	"context"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/catalog/domain"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/catalog/repository"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/events"
	"go.uber.org/zap"
)

const sourceService = "catalog-service"

// Publisher is the narrow capability the catalog service needs from the
// event transport. Tests substitute it with a recorder.
type Publisher interface {
	Publish(ctx context.Context, env events.Envelope) error
}

type ProductService struct {
	repo      repository.RepoInterface
	publisher Publisher
	logger    *zap.Logger
}

func NewProductService(repo repository.RepoInterface, publisher Publisher, logger *zap.Logger) *ProductService {
	return &ProductService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *ProductService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.repo.GetAllProducts(ctx)
}

func (s *ProductService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *ProductService) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	p.Active = true
	if _, err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProduct persists the change and emits ProductUpdated so downstream
// cart snapshots get reconciled. Publishing is fire-and-forget relative to
// the mutation: a publish failure is logged, not rolled back, and the cart
// side stays stale only until the product changes again or its cache expires.
func (s *ProductService) UpdateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}

	env, err := events.NewProductUpdated(ctx, sourceService, p.ID, events.ProductUpdatedPayload{
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		Currency:      p.Currency,
		StockQuantity: p.StockQuantity,
		Category:      p.Category,
		ImageURL:      p.ImageURL,
		Active:        p.Active,
	})
	if err != nil {
		s.logger.Error("could not build ProductUpdated event",
			zap.Int64("product_id", p.ID),
			zap.Error(err),
		)
		return p, nil
	}

	if err := s.publisher.Publish(ctx, env); err != nil {
		s.logger.Error("failed to publish ProductUpdated",
			zap.Int64("product_id", p.ID),
			zap.String("event_id", env.EventID),
			zap.Error(err),
		)
	}

	return p, nil
}

// DeleteProduct soft-deletes and emits ProductDeleted.
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeactivateProduct(ctx, id); err != nil {
		return err
	}

	env, err := events.NewProductDeleted(ctx, sourceService, id, events.ProductDeletedPayload{
		Name:     p.Name,
		Category: p.Category,
	})
	if err != nil {
		s.logger.Error("could not build ProductDeleted event",
			zap.Int64("product_id", id),
			zap.Error(err),
		)
		return nil
	}

	if err := s.publisher.Publish(ctx, env); err != nil {
		s.logger.Error("failed to publish ProductDeleted",
			zap.Int64("product_id", id),
			zap.String("event_id", env.EventID),
			zap.Error(err),
		)
	}

	return nil
}
