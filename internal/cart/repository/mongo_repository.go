package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{collection: db.Collection("carts")}
}

func (m *mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, storeErr("get cart", err)
	}

	return &cart, nil
}

func (m *mongoRepository) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	now := time.Now()
	item.AddedAt = now

	filter := bson.M{"user_id": userID}

	var existingCart domain.Cart
	err := m.collection.FindOne(ctx, filter).Decode(&existingCart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Cart is created lazily on first add.
			cart := &domain.Cart{
				UserID:    userID,
				Items:     []domain.CartItem{item},
				CreatedAt: now,
				UpdatedAt: now,
			}

			if _, err = m.collection.InsertOne(ctx, cart); err != nil {
				return storeErr("create cart with item", err)
			}
			return nil
		}
		return storeErr("check existing cart", err)
	}

	for _, existingItem := range existingCart.Items {
		if existingItem.ProductID == item.ProductID {
			// Same product added again: merge quantities, refresh snapshot.
			update := bson.M{
				"$inc": bson.M{"items.$[elem].quantity": item.Quantity},
				"$set": bson.M{
					"items.$[elem].product":  item.Product,
					"items.$[elem].added_at": now,
					"updated_at":             now,
				},
			}
			arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
				Filters: []interface{}{
					bson.M{"elem.product_id": item.ProductID},
				},
			})

			if _, err = m.collection.UpdateOne(ctx, filter, update, arrayFilters); err != nil {
				return storeErr("merge existing item", err)
			}
			return nil
		}
	}

	update := bson.M{
		"$push": bson.M{"items": item},
		"$set":  bson.M{"updated_at": now},
	}

	if _, err = m.collection.UpdateOne(ctx, filter, update); err != nil {
		return storeErr("add new item", err)
	}

	return nil
}

func (m *mongoRepository) UpdateItemQuantity(ctx context.Context, userID string, productID int64, quantity int) error {
	filter := bson.M{
		"user_id":          userID,
		"items.product_id": productID,
	}

	update := bson.M{
		"$set": bson.M{
			"items.$[elem].quantity": quantity,
			"updated_at":             time.Now(),
		},
	}

	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": productID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return storeErr("update item quantity", err)
	}

	if result.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (m *mongoRepository) RemoveItem(ctx context.Context, userID string, productID int64) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return storeErr("remove item", err)
	}

	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *mongoRepository) DeleteCart(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return storeErr("delete cart", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

// UpdateProductSnapshot overwrites the embedded product snapshot on every
// line item referencing productID, across all carts. A plain overwrite keeps
// the operation idempotent; quantity is never touched. Each UpdateMany write
// is atomic per cart document, so a user concurrently mutating their cart
// never observes a torn item.
func (m *mongoRepository) UpdateProductSnapshot(ctx context.Context, productID int64, snap domain.ProductSnapshot) (ReconcileResult, error) {
	userIDs, err := m.usersWithProduct(ctx, productID)
	if err != nil {
		return ReconcileResult{}, storeErr("find carts for product", err)
	}
	if len(userIDs) == 0 {
		return ReconcileResult{}, nil
	}

	filter := bson.M{"items.product_id": productID}
	update := bson.M{
		"$set": bson.M{
			"items.$[elem].product": snap,
			"updated_at":            time.Now(),
		},
	}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": productID},
		},
	})

	result, err := m.collection.UpdateMany(ctx, filter, update, arrayFilters)
	if err != nil {
		return ReconcileResult{}, storeErr("update product snapshot", err)
	}

	return ReconcileResult{ItemsAffected: result.ModifiedCount, UserIDs: userIDs}, nil
}

// MarkProductUnavailable flags every line item referencing productID so users
// see the item can no longer be bought. Items are kept, not removed; the user
// clears them explicitly. Re-marking an already-unavailable item is a no-op.
func (m *mongoRepository) MarkProductUnavailable(ctx context.Context, productID int64) (ReconcileResult, error) {
	userIDs, err := m.usersWithProduct(ctx, productID)
	if err != nil {
		return ReconcileResult{}, storeErr("find carts for product", err)
	}
	if len(userIDs) == 0 {
		return ReconcileResult{}, nil
	}

	filter := bson.M{"items.product_id": productID}
	update := bson.M{
		"$set": bson.M{
			"items.$[elem].product.available": false,
			"updated_at":                      time.Now(),
		},
	}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": productID},
		},
	})

	result, err := m.collection.UpdateMany(ctx, filter, update, arrayFilters)
	if err != nil {
		return ReconcileResult{}, storeErr("mark product unavailable", err)
	}

	return ReconcileResult{ItemsAffected: result.MatchedCount, UserIDs: userIDs}, nil
}

func (m *mongoRepository) usersWithProduct(ctx context.Context, productID int64) ([]string, error) {
	cursor, err := m.collection.Find(ctx, bson.M{"items.product_id": productID},
		options.Find().SetProjection(bson.M{"user_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var userIDs []string
	for cursor.Next(ctx) {
		var doc struct {
			UserID string `bson:"user_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, doc.UserID)
	}
	return userIDs, cursor.Err()
}

// EnsureIndexes sets up the cart collection indexes, including the
// items.product_id index the reconciliation scans depend on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "items.product_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := db.Collection("carts").Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func storeErr(op string, err error) error {
	return &StoreUnavailableError{Op: op, Err: err}
}
