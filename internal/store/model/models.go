package model

import (
	"gorm.io/datatypes"
)

type OrderStatus int

const (
	OrderStatusUnknown   OrderStatus = 0
	OrderStatusSubmitted OrderStatus = 1
	OrderStatusOpen      OrderStatus = 2
	OrderStatusFilled    OrderStatus = 3
	OrderStatusCanceled  OrderStatus = 4
	OrderStatusRejected  OrderStatus = 5
)

// OrderModel persists every order the engine submitted, simulated or live.
// RawData carries the full order payload for audit purposes.
type OrderModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	OrderID       string         `gorm:"column:order_id;uniqueIndex"`
	Symbol        string         `gorm:"column:symbol;index"`
	Side          string         `gorm:"column:side"`
	Type          string         `gorm:"column:type"`
	Quantity      float64        `gorm:"column:quantity"`
	Price         float64        `gorm:"column:price"`
	Cost          float64        `gorm:"column:cost"`
	LinkedOrderID string         `gorm:"column:linked_order_id"`
	IsSimulated   int            `gorm:"column:is_simulated"`
	Status        OrderStatus    `gorm:"column:status"`
	RawData       datatypes.JSON `gorm:"column:raw_data;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (OrderModel) TableName() string { return "orders" }
