package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/cache"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/domain"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/reconcile"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/repository"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/events"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// snapshotRecorder records the reconcile calls the handlers translate
// envelopes into.
type snapshotRecorder struct {
	mu          sync.Mutex
	updated     map[int64]domain.ProductSnapshot
	history     []domain.ProductSnapshot
	unavailable []int64
}

func newSnapshotRecorder() *snapshotRecorder {
	return &snapshotRecorder{updated: make(map[int64]domain.ProductSnapshot)}
}

func (s *snapshotRecorder) GetCart(context.Context, string) (*domain.Cart, error) {
	return nil, repository.ErrCartNotFound
}
func (s *snapshotRecorder) AddItem(context.Context, string, domain.CartItem) error { return nil }

func (s *snapshotRecorder) UpdateItemQuantity(context.Context, string, int64, int) error {
	return nil
}

func (s *snapshotRecorder) RemoveItem(context.Context, string, int64) error { return nil }

func (s *snapshotRecorder) DeleteCart(context.Context, string) error { return nil }

func (s *snapshotRecorder) UpdateProductSnapshot(_ context.Context, productID int64, snap domain.ProductSnapshot) (repository.ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated[productID] = snap
	s.history = append(s.history, snap)
	return repository.ReconcileResult{ItemsAffected: 1}, nil
}

func (s *snapshotRecorder) MarkProductUnavailable(_ context.Context, productID int64) (repository.ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = append(s.unavailable, productID)
	return repository.ReconcileResult{ItemsAffected: 1}, nil
}

type noopProductCache struct{}

func (noopProductCache) GetProduct(context.Context, int64) (*domain.Product, error) {
	return nil, cache.ErrCacheMiss
}
func (noopProductCache) SetProduct(context.Context, *domain.Product) error { return nil }
func (noopProductCache) InvalidateProduct(context.Context, int64) error { return nil }

type noopCartCache struct{}

func (noopCartCache) Get(context.Context, string) (*domain.Cart, error) {
	return nil, cache.ErrCacheMiss
}
func (noopCartCache) Set(context.Context, string, *domain.Cart) error { return nil }
func (noopCartCache) Delete(context.Context, string) error { return nil }

func TestRegisteredHandlers_ProductUpdatedReachesStore(t *testing.T) {
	repo := newSnapshotRecorder()
	rec := reconcile.NewReconciler(repo, noopProductCache{}, noopCartCache{}, zap.NewNop())

	c := newTestConsumer(&fakeDeadLetterWriter{})
	RegisterProductHandlers(c, rec)

	env, err := events.NewProductUpdated(context.Background(), "catalog-service", 42, events.ProductUpdatedPayload{
		Name:     "Widget Pro",
		Price:    12.49,
		Currency: "USD",
		Active:   true,
	})
	require.NoError(t, err)

	ack := c.process(context.Background(), envelopeMessage(t, env))
	require.True(t, ack)

	snap, ok := repo.updated[42]
	require.True(t, ok)
	assert.Equal(t, "Widget Pro", snap.Name)
	assert.Equal(t, 12.49, snap.Price)
	assert.True(t, snap.Available)
}

// Two updates for the same product must land in delivery order: the producer
// keys the topic by product ID and the consumer loop is strictly sequential,
// so the later message's snapshot is the one that survives.
func TestRun_SameProductUpdatesApplyInDeliveryOrder(t *testing.T) {
	first, err := events.NewProductUpdated(context.Background(), "catalog-service", 42, events.ProductUpdatedPayload{
		Name:   "Widget",
		Price:  9.99,
		Active: true,
	})
	require.NoError(t, err)

	second, err := events.NewProductUpdated(context.Background(), "catalog-service", 42, events.ProductUpdatedPayload{
		Name:   "Widget Pro",
		Price:  12.49,
		Active: true,
	})
	require.NoError(t, err)

	reader := &fakeReader{msgs: []kafka.Message{
		envelopeMessage(t, first),
		envelopeMessage(t, second),
	}}

	repo := newSnapshotRecorder()
	rec := reconcile.NewReconciler(repo, noopProductCache{}, noopCartCache{}, zap.NewNop())
	c := NewConsumer(reader, &fakeDeadLetterWriter{}, time.Second, zap.NewNop())
	RegisterProductHandlers(c, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.history, 2)
	assert.Equal(t, 9.99, repo.history[0].Price)
	assert.Equal(t, 12.49, repo.history[1].Price)

	final := repo.updated[42]
	assert.Equal(t, "Widget Pro", final.Name)
	assert.Equal(t, 12.49, final.Price)
}

func TestRegisteredHandlers_ProductDeletedReachesStore(t *testing.T) {
	repo := newSnapshotRecorder()
	rec := reconcile.NewReconciler(repo, noopProductCache{}, noopCartCache{}, zap.NewNop())

	c := newTestConsumer(&fakeDeadLetterWriter{})
	RegisterProductHandlers(c, rec)

	env, err := events.NewProductDeleted(context.Background(), "catalog-service", 7, events.ProductDeletedPayload{
		Name: "Gadget",
	})
	require.NoError(t, err)

	ack := c.process(context.Background(), envelopeMessage(t, env))
	require.True(t, ack)
	assert.Equal(t, []int64{7}, repo.unavailable)
}
