package models

import (
	"encoding/json"
	"time"

	"github.com/mmdatafocus/wholesale_backend/config"
	"github.com/shopspring/decimal"
)

// Order is one supplier's share of a checkout. Items are frozen at checkout time.
type Order struct {
	ID            int             `gorm:"primary_key" json:"id"`
	CheckoutToken string          `gorm:"size:64;not null;uniqueIndex:idx_order_checkout,priority:1" json:"checkout_token"`
	BuyerId       int             `gorm:"index;not null;uniqueIndex:idx_order_checkout,priority:2" json:"buyer_id"`
	SupplierId    int             `gorm:"index;not null;uniqueIndex:idx_order_checkout,priority:3" json:"supplier_id"`
	Items         []OrderItem     `gorm:"foreignKey:OrderId" json:"items"`
	TotalValue    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_value"`
	Status        OrderStatus     `gorm:"type:enum('new','confirmed','shipped','delivered','cancelled');not null;default:new" json:"status"`
	PaymentStatus PaymentStatus   `gorm:"type:enum('pending','paid','refunded');not null;default:pending" json:"payment_status"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrderItem struct {
	ID               int              `gorm:"primary_key" json:"id"`
	OrderId          int              `gorm:"index;not null" json:"order_id"`
	ProductId        int              `gorm:"index;not null" json:"product_id"`
	Name             string           `gorm:"size:100;not null" json:"name"`
	Quantity         int              `gorm:"not null" json:"quantity"`
	UnitPrice        decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	SaleType         SaleType         `gorm:"type:enum('unit','grade');not null" json:"sale_type"`
	ColorAllocations ColorAllocations `gorm:"type:json" json:"color_allocations,omitempty"`
	LineTotal        decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"line_total"`
}

// OrderOutbox is written in the same transaction as its order and published after commit.
type OrderOutbox struct {
	ID               int        `gorm:"primary_key;index:idx_order_outbox_dispatch,priority:3" json:"id"`
	EventType        string     `gorm:"size:50;not null" json:"event_type"`
	OrderId          int        `gorm:"index;not null" json:"order_id"`
	SupplierId       int        `gorm:"not null" json:"supplier_id"`
	BuyerId          int        `gorm:"not null" json:"buyer_id"`
	Payload          []byte     `gorm:"type:blob" json:"payload"`
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_order_outbox_dispatch,priority:1" json:"publish_status"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_order_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	PublishedAt      *time.Time `json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func newOrderPlacedOutbox(order *Order, correlationId string) (*OrderOutbox, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}
	return &OrderOutbox{
		EventType:     OrderEventPlaced,
		OrderId:       order.ID,
		SupplierId:    order.SupplierId,
		BuyerId:       order.BuyerId,
		Payload:       payload,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationId,
	}, nil
}

func ConvertToOrderEventMessage(record OrderOutbox) config.OrderEventMessage {
	return config.OrderEventMessage{
		ID:            record.ID,
		EventType:     record.EventType,
		OrderId:       record.OrderId,
		SupplierId:    record.SupplierId,
		BuyerId:       record.BuyerId,
		Payload:       json.RawMessage(record.Payload),
		CorrelationId: record.CorrelationId,
		OccurredAt:    record.CreatedAt,
	}
}
