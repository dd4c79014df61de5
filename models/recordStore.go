package models

import "context"

// Filter is a set of column equality conditions. A slice value matches any of its elements.
type Filter map[string]interface{}

// RecordStore is the generic per-entity record API the engine is written against.
type RecordStore[T any] interface {
	Find(ctx context.Context, filter Filter, order string, limit int) ([]*T, error)
	FindById(ctx context.Context, id int) (*T, error)
	Create(ctx context.Context, record *T) error
	Update(ctx context.Context, id int, patch map[string]interface{}) (*T, error)
	Delete(ctx context.Context, id int) error
}

// Store groups the record stores of every entity the engine touches.
//
// Transaction runs fn against a transactional view; fn's error rolls every write back.
// Nested calls on the view behave like savepoints.
type Store interface {
	Products() RecordStore[Product]
	Suppliers() RecordStore[Supplier]
	StockMovements() RecordStore[StockMovement]
	Orders() RecordStore[Order]
	OrderOutbox() RecordStore[OrderOutbox]
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
