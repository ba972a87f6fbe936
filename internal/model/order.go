package model

import "time"

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusAccepted OrderStatus = "accepted"
	OrderStatusDeclined OrderStatus = "declined"
	OrderStatusDone     OrderStatus = "done"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusAccepted, OrderStatusDeclined, OrderStatusDone:
		return true
	}
	return false
}

type Order struct {
	ID        string      `json:"id"`
	ServiceID string      `json:"serviceId"`
	ClientID  string      `json:"clientId"`
	MasterID  string      `json:"masterId"`
	Status    OrderStatus `json:"status"`
	Comment   string      `json:"comment,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type CreateOrderParams struct {
	ServiceID string `json:"serviceId"`
	Comment   string `json:"comment,omitempty"`
}
