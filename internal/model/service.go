package model

import "time"

type Service struct {
	ID          string    `json:"id"`
	MasterID    string    `json:"masterId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Price       int64     `json:"price"`
	CategoryID  string    `json:"categoryId,omitempty"`
	CityID      string    `json:"cityId,omitempty"`
	CoverURL    string    `json:"coverUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ServiceFilter carries listing query parameters
type ServiceFilter struct {
	Query      string
	CityID     string
	CategoryID string
	Limit      int
	Offset     int
}

type ServicePage struct {
	Items   []Service `json:"items"`
	Total   int       `json:"total"`
	HasMore bool      `json:"hasMore"`
}

type CreateServiceParams struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	CategoryID  string `json:"categoryId,omitempty"`
	CityID      string `json:"cityId,omitempty"`
}

type UpdateServiceParams struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       *int64  `json:"price,omitempty"`
	CategoryID  *string `json:"categoryId,omitempty"`
	CityID      *string `json:"cityId,omitempty"`
}
