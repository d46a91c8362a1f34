package repository

import (
	"context"
	"testing"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/catalog/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, repo.RunMigrations("./migrations"))
	return repo
}

func TestMigrations_SeedProducts(t *testing.T) {
	repo := newTestRepository(t)

	products, err := repo.GetAllProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 5)

	byName := make(map[string]*domain.Product, len(products))
	for _, p := range products {
		byName[p.Name] = p
	}
	widget, ok := byName["Widget"]
	require.True(t, ok)
	assert.Equal(t, 9.99, widget.Price)
	assert.True(t, widget.Active)
}

func TestMigrations_Idempotent(t *testing.T) {
	repo := newTestRepository(t)
	assert.NoError(t, repo.RunMigrations("./migrations"))
}

func TestCreateAndGetProduct(t *testing.T) {
	repo := newTestRepository(t)

	p := &domain.Product{
		Name:          "Flywheel",
		Description:   "Spins fast",
		Price:         31.50,
		Currency:      "USD",
		StockQuantity: 7,
		Category:      "mechanical",
		Active:        true,
	}

	id, err := repo.CreateProduct(context.Background(), p)
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := repo.GetProduct(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Flywheel", got.Name)
	assert.Equal(t, 31.50, got.Price)
	assert.Equal(t, 7, got.StockQuantity)
	assert.True(t, got.Active)
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetProduct(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestUpdateProduct(t *testing.T) {
	repo := newTestRepository(t)

	p := &domain.Product{Name: "Flywheel", Price: 31.50, Currency: "USD", Active: true}
	id, err := repo.CreateProduct(context.Background(), p)
	require.NoError(t, err)

	p.Name = "Flywheel XL"
	p.Price = 45.00
	require.NoError(t, repo.UpdateProduct(context.Background(), p))

	got, err := repo.GetProduct(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Flywheel XL", got.Name)
	assert.Equal(t, 45.00, got.Price)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))
}

func TestUpdateProduct_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	err := repo.UpdateProduct(context.Background(), &domain.Product{
		ID: 9999, Name: "Ghost", Price: 1.00, Active: true,
	})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestDeactivateProduct_HiddenFromListButStillReadable(t *testing.T) {
	repo := newTestRepository(t)

	p := &domain.Product{Name: "Flywheel", Price: 31.50, Currency: "USD", Active: true}
	id, err := repo.CreateProduct(context.Background(), p)
	require.NoError(t, err)

	before, err := repo.GetAllProducts(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.DeactivateProduct(context.Background(), id))

	after, err := repo.GetAllProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, after, len(before)-1)

	// Soft delete keeps the row so existing references stay resolvable.
	got, err := repo.GetProduct(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestDeactivateProduct_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	err := repo.DeactivateProduct(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrProductNotFound)
}
