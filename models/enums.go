package models

type SaleType string

const (
	SaleTypeUnit  SaleType = "unit"
	SaleTypeGrade SaleType = "grade"
)

type StockMovementType string

const (
	StockMovementTypeEntry      StockMovementType = "entry"
	StockMovementTypeExit       StockMovementType = "exit"
	StockMovementTypeAdjustment StockMovementType = "adjustment"
	StockMovementTypeLoss       StockMovementType = "loss"
	StockMovementTypeReturn     StockMovementType = "return"
)

func (t StockMovementType) IsValid() bool {
	switch t {
	case StockMovementTypeEntry, StockMovementTypeExit, StockMovementTypeAdjustment,
		StockMovementTypeLoss, StockMovementTypeReturn:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// stock movement reference types
const (
	StockReferenceOrder          = "order"
	StockReferenceCompensation   = "checkout_compensation"
	StockReferenceColorBreakdown = "color_breakdown"
)

// order outbox
const (
	OrderEventPlaced = "order.placed"

	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)
