package domain

import "time"

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"-"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// CartItem embeds a denormalized product snapshot taken when the item was
// added or last reconciled. Snapshot fields go stale until a product event
// brings them back in line; quantity is owned by the user alone.
type CartItem struct {
	ProductID int64           `bson:"product_id" json:"product_id"`
	Quantity  int             `bson:"quantity" json:"quantity"`
	Product   ProductSnapshot `bson:"product" json:"product"`
	AddedAt   time.Time       `bson:"added_at" json:"added_at"`
}

// Product is the cart service's view of a catalog product, resolved through
// the product cache or the catalog client at add-to-cart time.
type Product struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency"`
	StockQuantity int     `json:"stock_quantity"`
	Category      string  `json:"category"`
	ImageURL      string  `json:"image_url"`
	Active        bool    `json:"active"`
}

// Snapshot converts a product into the denormalized form embedded in a line item.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Currency:    p.Currency,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		Available:   p.Active,
	}
}

type ProductSnapshot struct {
	Name        string  `bson:"name" json:"name"`
	Description string  `bson:"description" json:"description"`
	Price       float64 `bson:"price" json:"price"`
	Currency    string  `bson:"currency" json:"currency"`
	Category    string  `bson:"category" json:"category"`
	ImageURL    string  `bson:"image_url" json:"image_url"`
	Available   bool    `bson:"available" json:"available"`
}

func (i CartItem) Subtotal() float64 {
	return i.Product.Price * float64(i.Quantity)
}

// ItemCount is the total number of units across all line items.
func (c *Cart) ItemCount() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Subtotal is always recomputed from current snapshots, never stored.
func (c *Cart) Subtotal() float64 {
	total := 0.0
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}
